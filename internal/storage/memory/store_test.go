package memory

import (
	"testing"

	"github.com/julianstephens/mimamori/internal/storage"
	"github.com/julianstephens/mimamori/internal/storage/storagetest"
)

func TestContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Provider {
		s := New()
		if err := s.Init(); err != nil {
			t.Fatalf("Init: %v", err)
		}
		return s
	})
}
