package nav

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the navigation subsystem. DefaultConfig
// returns the reference tuning; LoadConfig overlays a YAML file on it.
type Config struct {
	Grid     GridConfig     `yaml:"grid"`
	Planner  PlannerConfig  `yaml:"planner"`
	Steering SteeringConfig `yaml:"steering"`
	Recovery RecoveryConfig `yaml:"recovery"`
	Flight   FlightConfig   `yaml:"flight"`
	Arrival  ArrivalConfig  `yaml:"arrival"`
	Target   TargetConfig   `yaml:"target"`
	Leak     LeakConfig     `yaml:"leak"`
}

// GridConfig sizes the occupancy grid.
type GridConfig struct {
	CellSize     float64 `yaml:"cell_size"`
	Extent       float64 `yaml:"extent"` // side of the square map, centred on the origin
	SafetyMargin float64 `yaml:"safety_margin"`
	// InitialPad widens the first rasterized box around start and goal.
	InitialPad int `yaml:"initial_pad_cells"`
	// LazyPad is the neighbourhood rasterized when a query leaves the
	// validity rectangle.
	LazyPad int `yaml:"lazy_pad_cells"`
	// StartClear is the radius, in cells, freed around the start position.
	StartClear float64 `yaml:"start_clear_cells"`
	// EntityMargin widens the start/goal box used to collect obstacles.
	EntityMargin float64 `yaml:"entity_margin"`
	// VerticalBand filters obstacles above or below the operating height.
	VerticalBand float64 `yaml:"vertical_band"`
}

// PlannerConfig tunes the beam search.
type PlannerConfig struct {
	ConeDegrees   float64 `yaml:"cone_degrees"`
	Divisions     int     `yaml:"divisions"`
	ConeNarrowing float64 `yaml:"cone_narrowing"`
	BudgetPerTick int     `yaml:"budget_per_tick"`
	MaxDepth      int     `yaml:"max_depth"`
	StepDivisor   float64 `yaml:"step_divisor"`
	MinStepCells  float64 `yaml:"min_step_cells"`
	MaxStep       float64 `yaml:"max_step"`
}

// SteeringConfig tunes the per-tick motor commands.
type SteeringConfig struct {
	TurnGain        float64 `yaml:"turn_gain"`
	TurnSlowdown    float64 `yaml:"turn_slowdown"`
	TurnFirst       float64 `yaml:"turn_first"`
	DirectTurnFirst float64 `yaml:"direct_turn_first"`
	DirectNear      float64 `yaml:"direct_near"`
	CloseRadius     float64 `yaml:"close_radius"`
	StopFactor      float64 `yaml:"stop_factor"`
	RepulseGain     float64 `yaml:"repulse_gain"`
	RepulseStrength float64 `yaml:"repulse_strength"`
	FlyingRepulse   float64 `yaml:"flying_repulse"`
}

// RecoveryConfig tunes collision recovery and the watchdog.
type RecoveryConfig struct {
	WaitSeconds      float64 `yaml:"wait_seconds"`
	TurnTolerance    float64 `yaml:"turn_tolerance"`
	TurnTimeout      float64 `yaml:"turn_timeout"`
	AdvanceDistance  float64 `yaml:"advance_distance"`
	RetreatDistance  float64 `yaml:"retreat_distance"`
	AdvanceSpeed     float64 `yaml:"advance_speed"`
	WatchdogSeconds  float64 `yaml:"watchdog_seconds"`
	WatchdogDistance float64 `yaml:"watchdog_distance"`
	StallSeconds     float64 `yaml:"stall_seconds"`
	MaxTries         int     `yaml:"max_tries"`
	MaxRestarts      int     `yaml:"max_restarts"`
}

// FlightConfig tunes flyers.
type FlightConfig struct {
	GroundDistance  float64 `yaml:"ground_distance"`
	DefaultAltitude float64 `yaml:"default_altitude"`
	ClimbSlack      float64 `yaml:"climb_slack"`
	AltitudeBand    float64 `yaml:"altitude_band"`
	Lookahead       float64 `yaml:"lookahead"`
	DescendSpeed    float64 `yaml:"descend_speed"`
	CeilingMargin   float64 `yaml:"ceiling_margin"`
}

// ArrivalConfig holds arrival and turn tolerances.
type ArrivalConfig struct {
	Ground            float64 `yaml:"ground"`
	Air               float64 `yaml:"air"`
	Approx            float64 `yaml:"approx"`
	DirectGround      float64 `yaml:"direct_ground"`
	DirectAir         float64 `yaml:"direct_air"`
	FaceTolerance     float64 `yaml:"face_tolerance"`
	FaceApprox        float64 `yaml:"face_approx"`
	ExpressMargin     float64 `yaml:"express_margin"`
	ExpressMarginAir  float64 `yaml:"express_margin_air"`
	NearGoalRightLeft float64 `yaml:"near_goal_right_left"`
	FinalMoveMin      float64 `yaml:"final_move_min_seconds"`
}

// TargetConfig tunes approach resolution.
type TargetConfig struct {
	SearchMargin  float64 `yaml:"search_margin"`
	TakeDistance  float64 `yaml:"take_distance"`
	TakeOther     float64 `yaml:"take_other"`
	CargoStandOff float64 `yaml:"cargo_standoff"`
	BaseStandOff  float64 `yaml:"base_standoff"`
	ApproachExtra float64 `yaml:"approach_extra"`
}

// LeakConfig tunes the pre-planning escape.
type LeakConfig struct {
	Clearance      float64 `yaml:"clearance"`
	Distance       float64 `yaml:"distance"`
	RecedeDistance float64 `yaml:"recede_distance"`
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		Grid: GridConfig{
			CellSize:     5,
			Extent:       3200,
			SafetyMargin: 0.5,
			InitialPad:   10,
			LazyPad:      10,
			StartClear:   1.8,
			EntityMargin: 400,
			VerticalBand: 8,
		},
		Planner: PlannerConfig{
			ConeDegrees:   165,
			Divisions:     22,
			ConeNarrowing: 0.01,
			BudgetPerTick: 200,
			MaxDepth:      200,
			StepDivisor:   5,
			MinStepCells:  2.1,
			MaxStep:       20,
		},
		Steering: SteeringConfig{
			TurnGain:        2,
			TurnSlowdown:    0.7,
			TurnFirst:       0.2,
			DirectTurnFirst: 0.5,
			DirectNear:      20,
			CloseRadius:     4,
			StopFactor:      1.5,
			RepulseGain:     2,
			RepulseStrength: 0.2,
			FlyingRepulse:   0.2,
		},
		Recovery: RecoveryConfig{
			WaitSeconds:      1,
			TurnTolerance:    0.1,
			TurnTimeout:      3,
			AdvanceDistance:  5,
			RetreatDistance:  10,
			AdvanceSpeed:     0.5,
			WatchdogSeconds:  1,
			WatchdogDistance: 1,
			StallSeconds:     3,
			MaxTries:         6,
			MaxRestarts:      8,
		},
		Flight: FlightConfig{
			GroundDistance:  80,
			DefaultAltitude: 50,
			ClimbSlack:      20,
			AltitudeBand:    1,
			Lookahead:       20,
			DescendSpeed:    0.5,
			CeilingMargin:   5,
		},
		Arrival: ArrivalConfig{
			Ground:            1,
			Air:               2,
			Approx:            2,
			DirectGround:      0.1,
			DirectAir:         1,
			FaceTolerance:     0.02,
			FaceApprox:        0.1,
			ExpressMargin:     10,
			ExpressMarginAir:  20,
			NearGoalRightLeft: 10,
			FinalMoveMin:      0.5,
		},
		Target: TargetConfig{
			SearchMargin:  1,
			TakeDistance:  6,
			TakeOther:     1.5,
			CargoStandOff: 4,
			BaseStandOff:  12,
			ApproachExtra: 2,
		},
		Leak: LeakConfig{
			Clearance:      4,
			Distance:       4,
			RecedeDistance: 16,
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig. Missing keys keep their
// default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("nav config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("nav config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects tunings the planner cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Grid.CellSize <= 0 {
		errs = append(errs, errors.New("grid.cell_size must be > 0"))
	}
	if c.Grid.Extent < c.Grid.CellSize {
		errs = append(errs, errors.New("grid.extent must cover at least one cell"))
	}
	if c.Planner.Divisions <= 0 {
		errs = append(errs, errors.New("planner.divisions must be > 0"))
	}
	if c.Planner.BudgetPerTick <= 0 {
		errs = append(errs, errors.New("planner.budget_per_tick must be > 0"))
	}
	if c.Planner.MaxDepth < 2 {
		errs = append(errs, errors.New("planner.max_depth must be >= 2"))
	}
	if c.Planner.StepDivisor <= 0 {
		errs = append(errs, errors.New("planner.step_divisor must be > 0"))
	}
	if c.Planner.ConeNarrowing < 0 {
		errs = append(errs, errors.New("planner.cone_narrowing must be >= 0"))
	}
	if c.Recovery.WatchdogSeconds <= 0 {
		errs = append(errs, errors.New("recovery.watchdog_seconds must be > 0"))
	}
	return errors.Join(errs...)
}

// Marshal renders the configuration as YAML, e.g. to seed a config file.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
