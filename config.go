package engram

// strengthEpsilon floors effective strength so tanh/log never see zero.
const strengthEpsilon = 1e-6

// TypeDecayRate holds the three dual-layer decay constants for one memory
// type: mu1 (working decay), mu2 (core decay), alpha (working->core
// transfer rate). mu1 should be much larger than mu2.
type TypeDecayRate struct {
	Mu1   float64
	Mu2   float64
	Alpha float64
}

// DefaultDecayRates returns the default per-type dual-layer decay constants.
// Episodic and emotional memories persist (slow core decay); procedural and
// relational are warm; opinions fade fastest, mirroring how casual asides
// are least likely to stay relevant.
func DefaultDecayRates() map[MemoryType]TypeDecayRate {
	return map[MemoryType]TypeDecayRate{
		TypeFactual:    {Mu1: 0.35, Mu2: 0.015, Alpha: 0.08},
		TypeEpisodic:   {Mu1: 0.45, Mu2: 0.01, Alpha: 0.06},
		TypeRelational: {Mu1: 0.30, Mu2: 0.01, Alpha: 0.10},
		TypeEmotional:  {Mu1: 0.40, Mu2: 0.01, Alpha: 0.07},
		TypeProcedural: {Mu1: 0.25, Mu2: 0.02, Alpha: 0.09},
		TypeOpinion:    {Mu1: 0.55, Mu2: 0.04, Alpha: 0.04},
	}
}

// ScoringWeights are the five activation-scorer coefficients from spec §4.2.
// w_ctx + w_rec + w_freq + w_imp + w_str should sum to 1.
type ScoringWeights struct {
	Context float64 // w_ctx
	Recency float64 // w_rec
	Frequency float64 // w_freq
	Importance float64 // w_imp
	Strength float64 // w_str
}

// DefaultScoringWeights returns the standard activation-scorer weights.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		Context:    0.45,
		Recency:    0.20,
		Frequency:  0.15,
		Importance: 0.10,
		Strength:   0.10,
	}
}

// HebbianConfig controls the co-activation subsystem of §4.4. It is enabled
// by default; set Disabled to opt out entirely.
type HebbianConfig struct {
	Disabled            bool
	FormationThreshold  int     // T: co-activations needed to form a link
	DecayFactor         float64 // multiplicative decay applied at consolidation
	PruneFloor          float64 // edges below this strength are deleted
	StrengthenBoost     float64 // +boost applied to an already-formed edge on reinforcement
	StrengthCap         float64 // maximum edge strength
	ExpansionGate       float64 // minimum activation a candidate needs to seed graph expansion
}

// SessionWMConfig controls the per-session working-memory cache of §4.6.
type SessionWMConfig struct {
	Capacity     int     // Miller's-law-style chunk capacity, default 7
	DecaySeconds float64 // wall-clock seconds before an item ages out, default 300
	OverlapRatio float64 // probe/active overlap fraction that skips full recall, default 0.6
}

// Config bundles every tunable of the engine in one place, following the
// teacher's "single bundle with named presets" shape.
type Config struct {
	// Storage
	DBPath string // path to SQLite file (default: ./data/engram.db)

	// Providers (nil = use defaults)
	EmbeddingProvider EmbeddingProvider
	Classifier        TypeClassifier
	EntityExtractor   EntityExtractor

	// Scoring
	ScoringWeights *ScoringWeights
	ContextWeight  float64 // semantic vs. lexical blend inside the context term
	LambdaRecency  float64 // lambda_r: recency exponential decay rate
	CMax           int     // saturation point for the frequency term's log curve
	PinnedBonus    float64 // fixed bonus added to a pinned entry's activation
	MinActivation  float64 // candidates below this are discarded

	// Candidate gathering
	CandidateMultiplier int // k_cand = max(CandidateMultiplier*limit, CandidateFloor)
	CandidateFloor      int

	// Layers and pinning
	LayerWorkingThreshold float64
	LayerCoreThreshold    float64
	PinImportanceFloor    float64
	ForgetThresholdDefault float64

	// Decay
	DecayRates map[MemoryType]TypeDecayRate // nil entries fall back to defaults

	// Hebbian co-activation
	Hebbian HebbianConfig

	// Session working memory
	SessionWM SessionWMConfig

	// MaxEntries bounds total stored entries; 0 disables the cap. When
	// exceeded, Add prunes the lowest-effective-strength unpinned entries
	// first, mirroring the teacher's per-user cap enforcement.
	MaxEntries int

	// resolved holds the merged decay rates after ApplyDefaults.
	decayRates map[MemoryType]TypeDecayRate
	// resolved scoring weights
	scoringWeights ScoringWeights
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.DBPath == "" {
		c.DBPath = "./data/engram.db"
	}
	if c.ContextWeight == 0 {
		c.ContextWeight = 0.6
	}
	if c.LambdaRecency == 0 {
		c.LambdaRecency = 0.08
	}
	if c.CMax == 0 {
		c.CMax = 20
	}
	if c.PinnedBonus == 0 {
		c.PinnedBonus = 0.05
	}
	if c.MinActivation == 0 {
		c.MinActivation = 0.15
	}
	if c.CandidateMultiplier == 0 {
		c.CandidateMultiplier = 4
	}
	if c.CandidateFloor == 0 {
		c.CandidateFloor = 40
	}
	if c.LayerWorkingThreshold == 0 {
		c.LayerWorkingThreshold = 0.3
	}
	if c.LayerCoreThreshold == 0 {
		c.LayerCoreThreshold = 0.3
	}
	if c.PinImportanceFloor == 0 {
		c.PinImportanceFloor = 0.9
	}
	if c.ForgetThresholdDefault == 0 {
		c.ForgetThresholdDefault = 0.05
	}

	if c.Hebbian.FormationThreshold == 0 {
		c.Hebbian.FormationThreshold = 3
	}
	if c.Hebbian.DecayFactor == 0 {
		c.Hebbian.DecayFactor = 0.95
	}
	if c.Hebbian.PruneFloor == 0 {
		c.Hebbian.PruneFloor = 0.1
	}
	if c.Hebbian.StrengthenBoost == 0 {
		c.Hebbian.StrengthenBoost = 0.1
	}
	if c.Hebbian.StrengthCap == 0 {
		c.Hebbian.StrengthCap = 2.0
	}
	if c.Hebbian.ExpansionGate == 0 {
		c.Hebbian.ExpansionGate = 0.3
	}

	if c.SessionWM.Capacity == 0 {
		c.SessionWM.Capacity = 7
	}
	if c.SessionWM.DecaySeconds == 0 {
		c.SessionWM.DecaySeconds = 300
	}
	if c.SessionWM.OverlapRatio == 0 {
		c.SessionWM.OverlapRatio = 0.6
	}

	// Resolve decay rates: defaults merged with overrides.
	c.decayRates = DefaultDecayRates()
	for t, rate := range c.DecayRates {
		c.decayRates[t] = rate
	}

	// Resolve scoring weights.
	if c.ScoringWeights != nil {
		c.scoringWeights = *c.ScoringWeights
	} else {
		c.scoringWeights = DefaultScoringWeights()
	}
}

// --- Named presets ---

// ChatbotPreset balances recall across casual conversation: moderate decay,
// modest forget threshold, small working-memory window.
func ChatbotPreset() Config {
	cfg := Config{
		ContextWeight:          0.55,
		ForgetThresholdDefault: 0.05,
	}
	cfg.ApplyDefaults()
	return cfg
}

// TaskAgentPreset favors fast working-memory turnover: a task agent cares
// about what just happened, not what happened last week.
func TaskAgentPreset() Config {
	cfg := Config{
		ScoringWeights: &ScoringWeights{
			Context: 0.35, Recency: 0.35, Frequency: 0.10, Importance: 0.10, Strength: 0.10,
		},
		LambdaRecency:          0.2,
		ForgetThresholdDefault: 0.08,
	}
	rates := DefaultDecayRates()
	for t, r := range rates {
		r.Mu1 *= 1.6
		rates[t] = r
	}
	cfg.DecayRates = rates
	cfg.ApplyDefaults()
	return cfg
}

// PersonalAssistantPreset gives importance more weight in scoring and lowers
// the pin-importance floor to 0.7, so more high-importance entries (names,
// preferences) are kept by Forget. Decay rates are the defaults.
func PersonalAssistantPreset() Config {
	cfg := Config{
		ScoringWeights: &ScoringWeights{
			Context: 0.40, Recency: 0.15, Frequency: 0.15, Importance: 0.20, Strength: 0.10,
		},
		PinImportanceFloor:     0.7,
		ForgetThresholdDefault: 0.04,
	}
	cfg.ApplyDefaults()
	return cfg
}

// ResearcherPreset has low decay and a low forget threshold: a research
// agent would rather keep a marginal memory around than lose a citation.
func ResearcherPreset() Config {
	cfg := Config{
		ForgetThresholdDefault: 0.01,
		MinActivation:          0.1,
	}
	rates := DefaultDecayRates()
	for t, r := range rates {
		r.Mu1 *= 0.5
		r.Mu2 *= 0.4
		rates[t] = r
	}
	cfg.DecayRates = rates
	cfg.Hebbian.FormationThreshold = 2
	cfg.ApplyDefaults()
	return cfg
}
