package broadcast

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/polyeffects/ingen/pkg/path"
)

// TestDeliveryPreservesSubmissionOrderPerClient checks that, for any
// random interleaving of bundled and unbundled Put calls, one client's
// sink observes subjects in exactly the order they were submitted.
func TestDeliveryPreservesSubmissionOrderPerClient(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := New(zerolog.Nop())
		sink := &recordingSink{}
		b.RegisterClient("c1", sink)

		n := rapid.IntRange(1, 30).Draw(t, "n")
		var sent []path.URI
		i := 0
		for i < n {
			if rapid.Bool().Draw(t, "useBundle") {
				k := rapid.IntRange(1, 4).Draw(t, "bundleSize")
				b.BundleBegin()
				for j := 0; j < k && i < n; j++ {
					subj := path.URI(fmt.Sprintf("urn:obj:%d", i))
					b.Put(subj, nil)
					sent = append(sent, subj)
					i++
				}
				b.BundleEnd()
			} else {
				subj := path.URI(fmt.Sprintf("urn:obj:%d", i))
				b.Put(subj, nil)
				sent = append(sent, subj)
				i++
			}
		}

		var received []path.URI
		for _, bundle := range sink.bundles {
			for _, msg := range bundle {
				received = append(received, msg.Subject)
			}
		}
		require.Equal(t, sent, received)
	})
}
