package memstore

import (
	"testing"

	"github.com/brainmate-ai/tutorchat/settings"
	"github.com/brainmate-ai/tutorchat/settings/storetest"
)

func TestMemStore(t *testing.T) {
	storetest.RunStoreTests(t, func(t *testing.T) settings.Store {
		return New()
	})
}
