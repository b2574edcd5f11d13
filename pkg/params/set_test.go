package params

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetKeyIsOrderIndependent(t *testing.T) {
	a := Set{}
	a["stop_loss_pct"] = 0.1
	a["min_hold_days"] = 2
	b := Set{}
	b["min_hold_days"] = 2
	b["stop_loss_pct"] = 0.1

	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "min_hold_days=2,stop_loss_pct=0.1", a.Key())
}

func TestSetKeyDistinguishesValues(t *testing.T) {
	a := Set{"stop_loss_pct": 0.1}
	b := Set{"stop_loss_pct": 0.15}
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestSetCloneIsIndependent(t *testing.T) {
	orig := Defaults()
	clone := orig.Clone()
	clone[KeyMinHoldDays] = 99

	assert.Equal(t, 2, orig.Int(KeyMinHoldDays))
	assert.Equal(t, 99, clone.Int(KeyMinHoldDays))
}

func TestSetMergeOverridesWithoutMutating(t *testing.T) {
	base := Defaults()
	merged := base.Merge(Set{KeyStopLossPct: 0.05})

	assert.Equal(t, 0.05, merged.Float(KeyStopLossPct))
	assert.Equal(t, 0.10, base.Float(KeyStopLossPct))
}

func TestSetFloatMissingKeyIsNaN(t *testing.T) {
	s := Set{}
	assert.True(t, math.IsNaN(s.Float("nope")))
	assert.Equal(t, 0, s.Int("nope"))
}

func TestValidateRules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(Set)
		wantErr bool
	}{
		{"defaults pass", func(Set) {}, false},
		{"zero capital", func(s Set) { s[KeyInitialCapital] = 0 }, true},
		{"negative position size", func(s Set) { s[KeyPositionSize] = -1 }, true},
		{"zero position count", func(s Set) { s[KeyPositionCount] = 0 }, true},
		{"fractional position count", func(s Set) { s[KeyPositionCount] = 1.5 }, true},
		{"negative min hold", func(s Set) { s[KeyMinHoldDays] = -1 }, true},
		{"max hold below min hold", func(s Set) { s[KeyMinHoldDays] = 10; s[KeyMaxHoldDays] = 5 }, true},
		{"zero max hold disables horizon", func(s Set) { s[KeyMinHoldDays] = 10; s[KeyMaxHoldDays] = 0 }, false},
		{"stop loss above one", func(s Set) { s[KeyStopLossPct] = 1.2 }, true},
		{"NaN capital", func(s Set) { s[KeyInitialCapital] = math.NaN() }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Defaults()
			tt.mutate(s)
			err := ValidateRules(s)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
