package cli

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/pterm/pterm"
)

type progressSpinner interface {
	Stop() error
	Success(...any)
	Fail(...any)
	UpdateText(string)
}

type progressSpinnerFactory func(string) (progressSpinner, error)

var defaultSpinnerFactory progressSpinnerFactory = func(text string) (progressSpinner, error) {
	spinner, err := pterm.DefaultSpinner.
		WithRemoveWhenDone(false).
		WithText(text).
		Start()
	if err != nil {
		return nil, err
	}
	return spinner, nil
}

// StepStatus represents the state of a progress step.
type StepStatus int

const (
	// StepPending indicates a step has not yet started.
	StepPending StepStatus = iota
	// StepRunning indicates a step is currently in progress.
	StepRunning
	// StepCompleted indicates a step finished successfully.
	StepCompleted
	// StepFailed indicates a step encountered an error.
	StepFailed
)

// Step is one stage of a command, shown as a spinner while running.
type Step struct {
	ID      string
	Message string
	Status  StepStatus

	startTime time.Time
}

// ProgressManager shows one spinner per step, one step at a time.
type ProgressManager struct {
	stepMap        map[string]*Step
	current        *Step
	currentSpinner progressSpinner
	spinnerFactory progressSpinnerFactory
	mu             sync.Mutex
	disabled       bool
}

// ProgressManagerOption allows customizing ProgressManager behavior at creation time.
type ProgressManagerOption func(*ProgressManager)

// WithProgressOutput enables or disables terminal output for a ProgressManager.
func WithProgressOutput(enabled bool) ProgressManagerOption {
	return func(pm *ProgressManager) {
		pm.disabled = !enabled
	}
}

func withProgressSpinnerFactory(factory progressSpinnerFactory) ProgressManagerOption {
	return func(pm *ProgressManager) {
		pm.spinnerFactory = factory
	}
}

// NewProgressManager creates a new ProgressManager with all steps registered upfront.
func NewProgressManager(steps []*Step, opts ...ProgressManagerOption) *ProgressManager {
	pterm.Success.Prefix = pterm.Prefix{Text: "✓", Style: pterm.NewStyle(pterm.FgGreen)}
	pterm.Error.Prefix = pterm.Prefix{Text: "✗", Style: pterm.NewStyle(pterm.FgRed)}
	pterm.DefaultSpinner.Sequence = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	pterm.DefaultSpinner.Style = pterm.NewStyle(pterm.FgCyan)

	pm := &ProgressManager{
		stepMap:        make(map[string]*Step, len(steps)),
		spinnerFactory: defaultSpinnerFactory,
	}
	for _, step := range steps {
		pm.stepMap[step.ID] = step
	}
	for _, opt := range opts {
		opt(pm)
	}
	return pm
}

func (pm *ProgressManager) step(stepID string) (*Step, error) {
	step, ok := pm.stepMap[stepID]
	if !ok {
		return nil, errors.Errorf("step %q not found", stepID)
	}
	return step, nil
}

// Start begins the given step, stopping the spinner of any step still running.
func (pm *ProgressManager) Start(stepID string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	step, err := pm.step(stepID)
	if err != nil {
		return err
	}
	step.Status = StepRunning
	step.startTime = time.Now()
	pm.current = step

	if pm.disabled {
		return nil
	}
	pm.stopSpinnerLocked()
	spinner, err := pm.spinnerFactory(step.Message)
	if err != nil {
		return errors.Wrap(err, "failed to start spinner")
	}
	pm.currentSpinner = spinner
	return nil
}

// Complete marks a step as completed. An empty message repeats the step's own message.
func (pm *ProgressManager) Complete(stepID, message string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	step, err := pm.step(stepID)
	if err != nil {
		return err
	}
	step.Status = StepCompleted
	if message == "" {
		message = step.Message
	}
	message += elapsed(step)

	if pm.disabled {
		return nil
	}
	if pm.current == step && pm.currentSpinner != nil {
		pm.currentSpinner.Success(message)
		pm.currentSpinner = nil
	} else {
		pterm.Success.Println(message)
	}
	pm.current = nil
	return nil
}

// Fail marks a step as failed with err.
func (pm *ProgressManager) Fail(stepID string, err error) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	step, stepErr := pm.step(stepID)
	if stepErr != nil {
		return stepErr
	}
	step.Status = StepFailed
	message := fmt.Sprintf("%s: %v", step.Message, err)

	if pm.disabled {
		return nil
	}
	if pm.current == step && pm.currentSpinner != nil {
		pm.currentSpinner.Fail(message)
		pm.currentSpinner = nil
	} else {
		pterm.Error.Println(message)
	}
	pm.current = nil
	return nil
}

// Running reports whether the given step has started and not yet finished.
func (pm *ProgressManager) Running(stepID string) bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	step, ok := pm.stepMap[stepID]
	return ok && step.Status == StepRunning
}

// UpdateText replaces the text of the active spinner.
func (pm *ProgressManager) UpdateText(text string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.disabled || pm.currentSpinner == nil {
		return
	}
	pm.currentSpinner.UpdateText(text)
}

// Stop stops any active spinner.
func (pm *ProgressManager) Stop() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.disabled {
		return
	}
	pm.stopSpinnerLocked()
}

func (pm *ProgressManager) stopSpinnerLocked() {
	if pm.currentSpinner != nil {
		//nolint:errcheck
		pm.currentSpinner.Stop()
		pm.currentSpinner = nil
	}
}

func elapsed(step *Step) string {
	if step.startTime.IsZero() {
		return ""
	}
	return fmt.Sprintf(" (%s)", time.Since(step.startTime).Round(100*time.Millisecond))
}
