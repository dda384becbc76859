package systems

import "fmt"

// Stage is one of the ordered notifications a component receives after
// every base time step.
type Stage uint8

const (
	StageBitstreaming Stage = iota
	StageModulation
	StageDestructing
	StageSpawning
	StagePumping
	StageLogging
)

// Stages lists the notification stages in the order the kernel runs them.
var Stages = []Stage{
	StageBitstreaming,
	StageModulation,
	StageDestructing,
	StageSpawning,
	StagePumping,
	StageLogging,
}

var stageNames = [...]string{
	StageBitstreaming: "BITSTREAMING",
	StageModulation:   "MODULATION",
	StageDestructing:  "DESTRUCTING",
	StageSpawning:     "SPAWNING",
	StagePumping:      "PUMPING",
	StageLogging:      "LOGGING",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", s)
}

// Env is the view of the running simulation handed to components.
type Env interface {
	SimTime() float64
	ElapsedSteps() int
	BaseDeltaTime() float64
	ResultsDir() string
	Molecules() *MoleculeManager
	Scene() *SceneManager
}

// Component reacts to notification stages.
type Component interface {
	Name() string
	Process(env Env, stage Stage) error
	Finalize() error
}

// StaticEnv is an Env with fixed values, used when components run outside
// the kernel.
type StaticEnv struct {
	Time      float64
	Elapsed   int
	BaseDelta float64
	Results   string
	Mols      *MoleculeManager
	Scn       *SceneManager
}

func (e *StaticEnv) SimTime() float64            { return e.Time }
func (e *StaticEnv) ElapsedSteps() int           { return e.Elapsed }
func (e *StaticEnv) BaseDeltaTime() float64      { return e.BaseDelta }
func (e *StaticEnv) ResultsDir() string          { return e.Results }
func (e *StaticEnv) Molecules() *MoleculeManager { return e.Mols }
func (e *StaticEnv) Scene() *SceneManager        { return e.Scn }
