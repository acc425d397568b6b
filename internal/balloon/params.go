package balloon

// Params configures one VM's BallooningController sub-controller. All
// fields are per-VM overridable; the zero value is never used directly —
// construct with Defaults() and override individual fields.
//
// Replaces the teacher's mutable-global tuning knobs per §9's design note:
// parameters are a record passed at construction, and runtime tuning goes
// through SubController.SetParams, which also clears any active cool-down.
type Params struct {
	MinActual       uint64  // bytes
	TriggerIncrease float64 // percent guest usage that triggers inflate
	IncreaseBy      int     // percent relative inflate step
	TriggerDecrease float64 // percent guest usage that triggers deflate
	DecreaseBy      int     // percent relative deflate step (stored positive)
	BackOffSec      int64   // cool-down after a deflate
	BootBackOffSec  int64   // cool-down applied after boot / while shut off
}

// Defaults returns the spec's default parameters.
func Defaults() Params {
	return Params{
		MinActual:       2 << 30, // 2 GiB
		TriggerIncrease: 65,
		IncreaseBy:      30,
		TriggerDecrease: 55,
		DecreaseBy:      10,
		BackOffSec:      10,
		BootBackOffSec:  20,
	}
}
