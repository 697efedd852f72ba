package engram

// ApplyDecay mutates e's dual-layer strengths for one consolidation step of
// dt days, per spec §4.1:
//
//	transfer          = alpha * working_strength * dt
//	working_strength  = working_strength * exp(-mu1*dt) - transfer, floored at 0
//	core_strength     = core_strength * exp(-mu2*dt) + transfer
//
// Pinned entries skip core-strength decay (the exp(-mu2*dt) multiplier is
// not applied) but their working strength still decays and still feeds
// transfer into core.
func ApplyDecay(e *Entry, rate TypeDecayRate, dt float64, cfg *Config) {
	transfer := rate.Alpha * e.WorkingStrength * dt

	e.WorkingStrength = e.WorkingStrength*expNeg(rate.Mu1*dt) - transfer
	if e.WorkingStrength < 0 {
		e.WorkingStrength = 0
	}

	if e.Pinned {
		e.CoreStrength += transfer
	} else {
		e.CoreStrength = e.CoreStrength*expNeg(rate.Mu2*dt) + transfer
	}
	if e.CoreStrength < 0 {
		e.CoreStrength = 0
	}

	e.Layer = deriveLayer(e, cfg)
}

// deriveLayer recomputes an entry's layer from its current strengths.
func deriveLayer(e *Entry, cfg *Config) Layer {
	switch {
	case e.CoreStrength >= cfg.LayerCoreThreshold:
		return LayerCore
	case e.WorkingStrength >= cfg.LayerWorkingThreshold:
		return LayerWorking
	default:
		return LayerArchive
	}
}
