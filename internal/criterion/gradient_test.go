package criterion_test

import (
	"testing"

	"github.com/born-ml/criterion/internal/criterion"
	"github.com/born-ml/criterion/internal/gradcheck"
	"github.com/born-ml/criterion/internal/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradientsMatchFiniteDifferences(t *testing.T) {
	layouts := []struct {
		name     string
		cols     int
		layout   *layout.MBLayout
		multiSeq bool
	}{
		{"dense", 3, nil, false},
		{"trailing gap", 4, criterion.TrailingGap(4), false},
		{"two sequences", 6, layout.FromLengths(3, 2), true},
	}
	for _, f := range criterion.Fixtures() {
		if len(f.Checked) == 0 {
			continue
		}
		for _, lc := range layouts {
			if lc.multiSeq && f.Name == criterion.OpCRF {
				continue
			}
			t.Run(f.Name+"/"+lc.name, func(t *testing.T) {
				c := f.Build(lc.cols, lc.layout)
				require.NoError(t, c.Validate(false))
				require.NoError(t, c.Validate(true))

				for _, seed := range []float64{1, -0.5} {
					cfg := gradcheck.DefaultConfig()
					cfg.Seed = seed
					results, err := gradcheck.Check(c, f.Checked, cfg)
					require.NoError(t, err)
					require.Len(t, results, len(f.Checked))
					for _, r := range results {
						assert.True(t, r.Passed, "seed %g input %d (%s): max error %g at %d", seed, r.Input, r.Node, r.MaxError, r.Worst)
					}
				}
			})
		}
	}
}
