package memory

import (
	"testing"

	"github.com/jdelmas/sylva/store/storetest"
)

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, NewStore())
}

func TestStoreSweep(t *testing.T) {
	storetest.RunSweep(t, NewStore())
}

func TestUserStoreConformance(t *testing.T) {
	storetest.RunUsers(t, NewStore())
}
