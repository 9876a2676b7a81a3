package modify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/input"
	"github.com/sprite-ai/reviewgate/internal/model"
	"github.com/sprite-ai/reviewgate/internal/plan"
)

// ErrNoPlan is returned when the task has no saved plan to modify.
var ErrNoPlan = errors.New("no implementation plan found")

// Messages reported in Outcome.Message.
const (
	MsgNoModifications = "No modifications made"
	MsgDiscarded       = "Modifications discarded"
	MsgInterrupted     = "Session interrupted"
	MsgSaved           = "Modifications saved"
)

const rule = "============================================================"

// Outcome is the result of a modification session.
type Outcome struct {
	SessionID string
	Saved     bool
	Cancelled bool
	Message   string
	Plan      *model.ImplementationPlan
	Changes   []Change
	Version   *plan.Version
}

// Deps are the Modifier's collaborators.
type Deps struct {
	Console  *input.Console
	Plans    *plan.Store
	Sessions *SessionStore
	Logger   *zap.Logger
	Now      func() time.Time
}

// Modifier runs the interactive modification menu.
type Modifier struct {
	con      *input.Console
	plans    *plan.Store
	sessions *SessionStore
	logger   *zap.Logger
	now      func() time.Time
}

// NewModifier creates a modifier.
func NewModifier(d Deps) *Modifier {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Modifier{con: d.Console, plans: d.Plans, sessions: d.Sessions, logger: d.Logger, now: d.Now}
}

// RunInteractive loads the task's current plan, runs the menu and, when the
// user saves, stores the result as a new plan version.
func (m *Modifier) RunInteractive(ctx context.Context, taskID string) (*Outcome, error) {
	rec, err := m.plans.Load(taskID)
	if errors.Is(err, plan.ErrNotFound) {
		return nil, fmt.Errorf("%w for %s", ErrNoPlan, taskID)
	}
	if err != nil {
		return nil, err
	}

	out, err := m.Edit(ctx, taskID, rec.Plan)
	if err != nil || !out.Saved {
		return out, err
	}

	v, err := m.plans.Versions(taskID, m.logger).
		Record(rec.Plan, out.Plan, fmt.Sprintf("Plan modification session (%d changes)", len(out.Changes)), "user")
	if err != nil {
		return out, err
	}
	out.Version = v
	m.con.Success("\n✓ Plan saved as version %d", v.Number)
	return out, nil
}

// Edit runs the menu over a copy of p without touching the plan store. The
// session itself is persisted when a SessionStore is configured.
func (m *Modifier) Edit(ctx context.Context, taskID string, p *model.ImplementationPlan) (*Outcome, error) {
	sess := NewSession(taskID, p, m.now)
	if err := sess.Start(); err != nil {
		return nil, err
	}
	m.logger.Info("modification session started", zap.String("task_id", taskID), zap.String("session_id", sess.ID))

	for {
		m.showMenu(sess)
		choice, err := m.con.Prompt(ctx, "Enter choice (1-8): ")
		if err == nil {
			switch choice {
			case "1":
				err = m.editFiles(ctx, sess)
			case "2":
				err = m.editDependencies(ctx, sess)
			case "3":
				err = m.editRisks(ctx, sess)
			case "4":
				err = m.editEffort(ctx, sess)
			case "5":
				err = m.editPhases(ctx, sess)
			case "6":
				m.undo(sess)
			case "7":
				if out := m.finalize(ctx, sess); out != nil {
					return out, nil
				}
			case "8":
				sess.Cancel()
				m.con.Println("\nModifications cancelled. Original plan unchanged.")
				return m.close(sess, &Outcome{Cancelled: true, Message: MsgDiscarded}), nil
			default:
				m.con.Println("Invalid choice. Please try again.")
			}
		}
		if err != nil {
			// EOF and interrupts cancel the session.
			sess.Cancel()
			m.con.Println("\nSession interrupted. Cancelling modifications.")
			return m.close(sess, &Outcome{Cancelled: true, Message: MsgInterrupted}), nil
		}
	}
}

func (m *Modifier) close(sess *Session, out *Outcome) *Outcome {
	out.SessionID = sess.ID
	out.Changes = sess.Changes()
	out.Plan = sess.Plan()
	if m.sessions != nil && sess.ModificationCount() > 0 {
		if _, err := m.sessions.Save(sess); err != nil {
			m.logger.Warn("could not persist modification session", zap.Error(err))
		} else if _, err := m.sessions.SaveSummary(sess); err != nil {
			m.logger.Warn("could not persist session summary", zap.Error(err))
		}
	}
	m.logger.Info("modification session ended",
		zap.String("session_id", sess.ID),
		zap.Stringer("state", sess.State()),
		zap.Int("changes", sess.ModificationCount()))
	return out
}

func (m *Modifier) finalize(ctx context.Context, sess *Session) *Outcome {
	if sess.ModificationCount() == 0 {
		sess.End()
		m.con.Println("\nNo modifications made. Plan unchanged.")
		return m.close(sess, &Outcome{Message: MsgNoModifications})
	}
	if problems := Validate(sess.Original(), sess.Changes()); len(problems) > 0 {
		m.con.Fail("\nValidation failed:")
		for _, p := range problems {
			m.con.Printf("  - %s\n", p)
		}
		return nil
	}
	m.con.Printf("\n%s\n", sess.Tracker().Summary())
	ok, err := m.con.Confirm(ctx, "\nSave modifications? (y/n): ")
	if err != nil || !ok {
		sess.Cancel()
		m.con.Println("Modifications discarded. Plan unchanged.")
		return m.close(sess, &Outcome{Cancelled: true, Message: MsgDiscarded})
	}
	sess.End()
	return m.close(sess, &Outcome{Saved: true, Message: MsgSaved})
}

func (m *Modifier) showMenu(sess *Session) {
	m.con.Printf("\n%s\nPlan Modification Session for %s\n%s\n\n", rule, sess.TaskID, rule)
	changes := sess.Changes()
	m.con.Printf("Current Modifications: %d\n", len(changes))
	for i, c := range changes {
		if i == 3 {
			m.con.Printf("  ... and %d more\n", len(changes)-3)
			break
		}
		m.con.Printf("  - %s\n", c.Describe())
	}
	m.con.Println("\nWhat would you like to modify?")
	m.con.Println("  1. Files (add/remove)")
	m.con.Println("  2. Dependencies")
	m.con.Println("  3. Risks")
	m.con.Println("  4. Effort Estimate")
	m.con.Println("  5. Phases")
	m.con.Println("  6. Undo Last Change")
	m.con.Println("  7. Save and Exit")
	m.con.Println("  8. Cancel (discard changes)")
}

func (m *Modifier) do(sess *Session, c Change, ok string) {
	if _, err := sess.Do(c); err != nil {
		if errors.Is(err, ErrNoEffect) {
			m.con.Warn("No change: %s", c.Describe())
			return
		}
		m.con.Fail("Could not apply change: %v", err)
		return
	}
	m.con.Success("✓ %s", ok)
}

func (m *Modifier) undo(sess *Session) {
	c, err := sess.Undo()
	if errors.Is(err, ErrNothingToUndo) {
		m.con.Println("\nNo modifications to undo.")
		return
	}
	if err != nil {
		m.con.Fail("Undo failed: %v", err)
		return
	}
	m.con.Success("\n✓ Undone: %s", c.Describe())
}

// pick prompts for a 1-based index into n items.
func (m *Modifier) pick(ctx context.Context, prompt string, n int) (int, bool, error) {
	ans, err := m.con.Prompt(ctx, prompt)
	if err != nil {
		return 0, false, err
	}
	i, convErr := strconv.Atoi(ans)
	if convErr != nil {
		m.con.Println("Invalid input. Please enter a number.")
		return 0, false, nil
	}
	if i < 1 || i > n {
		m.con.Println("Invalid number.")
		return 0, false, nil
	}
	return i - 1, true, nil
}

func (m *Modifier) listItems(title string, items []string) {
	m.con.Printf("%s (%d):\n", title, len(items))
	if len(items) == 0 {
		m.con.Println("  (none)")
	}
	for i, it := range items {
		m.con.Printf("  %d. %s\n", i+1, it)
	}
}

func (m *Modifier) editFiles(ctx context.Context, sess *Session) error {
	for {
		p := sess.Plan()
		m.con.Printf("\n%s\nFiles in Plan\n%s\n\n", rule, rule)
		m.listItems("Files to Create", p.FilesToCreate)
		m.listItems("Files to Modify", p.FilesToModify)
		m.con.Println("\nOptions:")
		m.con.Println("  1. Add file to create")
		m.con.Println("  2. Remove file to create")
		m.con.Println("  3. Add file to modify")
		m.con.Println("  4. Remove file to modify")
		m.con.Println("  5. Rename file")
		m.con.Println("  6. Back to main menu")
		choice, err := m.con.Prompt(ctx, "Enter choice (1-6): ")
		if err != nil {
			return err
		}
		switch choice {
		case "1", "3":
			list := ListCreate
			if choice == "3" {
				list = ListModify
			}
			path, err := m.con.Prompt(ctx, fmt.Sprintf("Enter file path to %s: ", list))
			if err != nil {
				return err
			}
			if path == "" {
				m.con.Println("File path cannot be empty.")
				continue
			}
			m.do(sess, NewFileAdded(list, path, ""), fmt.Sprintf("Added '%s' to files to %s", path, list))
		case "2", "4":
			list := ListCreate
			files := p.FilesToCreate
			if choice == "4" {
				list, files = ListModify, p.FilesToModify
			}
			if len(files) == 0 {
				m.con.Printf("No files to %s in plan.\n", list)
				continue
			}
			m.listItems("Files to "+list.String(), files)
			i, ok, err := m.pick(ctx, "Enter number to remove: ", len(files))
			if err != nil {
				return err
			}
			if ok {
				m.do(sess, NewFileRemoved(list, files[i], ""), fmt.Sprintf("Removed '%s'", files[i]))
			}
		case "5":
			all := p.AllFiles()
			if len(all) == 0 {
				m.con.Println("No files in plan.")
				continue
			}
			m.listItems("Files", all)
			i, ok, err := m.pick(ctx, "Enter number to rename: ", len(all))
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			newPath, err := m.con.Prompt(ctx, "New path: ")
			if err != nil {
				return err
			}
			if newPath == "" {
				m.con.Println("File path cannot be empty.")
				continue
			}
			list := ListCreate
			if i >= len(p.FilesToCreate) {
				list = ListModify
			}
			m.do(sess, NewFileModified(list, all[i], newPath), fmt.Sprintf("Renamed '%s' to '%s'", all[i], newPath))
		case "6", "":
			return nil
		default:
			m.con.Println("Invalid choice. Please try again.")
		}
	}
}

func (m *Modifier) editDependencies(ctx context.Context, sess *Session) error {
	for {
		p := sess.Plan()
		m.con.Printf("\n%s\nDependencies in Plan\n%s\n\n", rule, rule)
		m.listItems("External Dependencies", p.ExternalDependencies)
		m.con.Println("\nOptions:")
		m.con.Println("  1. Add dependency")
		m.con.Println("  2. Remove dependency")
		m.con.Println("  3. Back to main menu")
		choice, err := m.con.Prompt(ctx, "Enter choice (1-3): ")
		if err != nil {
			return err
		}
		switch choice {
		case "1":
			name, err := m.con.Prompt(ctx, "  Package name: ")
			if err != nil {
				return err
			}
			if name == "" {
				m.con.Println("Package name cannot be empty.")
				continue
			}
			version, err := m.con.Prompt(ctx, "  Version (optional): ")
			if err != nil {
				return err
			}
			purpose, err := m.con.Prompt(ctx, "  Purpose (optional): ")
			if err != nil {
				return err
			}
			dep := name
			if version != "" {
				dep = name + " " + version
			}
			m.do(sess, NewDependencyAdded(dep, purpose), fmt.Sprintf("Added dependency '%s'", dep))
		case "2":
			if len(p.ExternalDependencies) == 0 {
				m.con.Println("No dependencies in plan.")
				continue
			}
			m.listItems("Dependencies", p.ExternalDependencies)
			i, ok, err := m.pick(ctx, "Enter number to remove: ", len(p.ExternalDependencies))
			if err != nil {
				return err
			}
			if ok {
				dep := p.ExternalDependencies[i]
				m.do(sess, NewDependencyRemoved(dep, ""), fmt.Sprintf("Removed dependency '%s'", dep))
			}
		case "3", "":
			return nil
		default:
			m.con.Println("Invalid choice. Please try again.")
		}
	}
}

func (m *Modifier) editRisks(ctx context.Context, sess *Session) error {
	for {
		p := sess.Plan()
		m.con.Printf("\n%s\nRisks in Plan\n%s\n\n", rule, rule)
		m.con.Printf("Risks (%d):\n", len(p.Risks))
		if len(p.Risks) == 0 {
			m.con.Println("  (none)")
		}
		for i, r := range p.Risks {
			m.con.Printf("  %d. %s: %s\n", i+1, strings.ToUpper(r.Level.String()), r.Description)
			if r.Mitigation != "" {
				m.con.Printf("     Mitigation: %s\n", r.Mitigation)
			}
		}
		m.con.Println("\nOptions:")
		m.con.Println("  1. Add risk")
		m.con.Println("  2. Remove risk")
		m.con.Println("  3. Modify risk severity/mitigation")
		m.con.Println("  4. Back to main menu")
		choice, err := m.con.Prompt(ctx, "Enter choice (1-4): ")
		if err != nil {
			return err
		}
		switch choice {
		case "1":
			desc, err := m.con.Prompt(ctx, "  Risk description: ")
			if err != nil {
				return err
			}
			if desc == "" {
				m.con.Println("Risk description cannot be empty.")
				continue
			}
			level, err := m.askLevel(ctx, "  Severity (high/medium/low) [medium]: ", model.RiskMedium)
			if err != nil {
				return err
			}
			mitigation, err := m.con.Prompt(ctx, "  Mitigation strategy (optional): ")
			if err != nil {
				return err
			}
			r := model.Risk{Description: desc, Level: level, Mitigation: mitigation}
			m.do(sess, NewRiskAdded(r, len(p.Risks)), fmt.Sprintf("Added risk '%s'", desc))
		case "2", "3":
			if len(p.Risks) == 0 {
				m.con.Println("No risks in plan.")
				continue
			}
			i, ok, err := m.pick(ctx, "Enter risk number: ", len(p.Risks))
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			old := p.Risks[i]
			if choice == "2" {
				m.do(sess, NewRiskRemoved(old, i), "Removed risk")
				continue
			}
			m.con.Println("Modify risk (press Enter to keep current value):")
			level, err := m.askLevel(ctx, fmt.Sprintf("  Severity (%s): ", old.Level), old.Level)
			if err != nil {
				return err
			}
			current := old.Mitigation
			if current == "" {
				current = "(none)"
			}
			m.con.Printf("  Current mitigation: %s\n", current)
			mitigation, err := m.con.Prompt(ctx, "  New mitigation: ")
			if err != nil {
				return err
			}
			updated := old
			updated.Level = level
			if mitigation != "" {
				updated.Mitigation = mitigation
			}
			m.do(sess, NewRiskModified(old, updated, i), "Risk updated")
		case "4", "":
			return nil
		default:
			m.con.Println("Invalid choice. Please try again.")
		}
	}
}

func (m *Modifier) askLevel(ctx context.Context, prompt string, def model.RiskLevel) (model.RiskLevel, error) {
	ans, err := m.con.Prompt(ctx, prompt)
	if err != nil {
		return def, err
	}
	if ans == "" {
		return def, nil
	}
	level, perr := model.ParseRiskLevel(strings.ToLower(ans))
	if perr != nil {
		m.con.Println("Invalid severity. Using 'medium'.")
		return model.RiskMedium, nil
	}
	return level, nil
}

func (m *Modifier) editEffort(ctx context.Context, sess *Session) error {
	p := sess.Plan()
	duration := orDefault(p.EstimatedDuration, "Not specified")
	m.con.Printf("\n%s\nEffort Estimate\n%s\n\n", rule, rule)
	m.con.Println("Current Estimate:")
	m.con.Printf("  Duration: %s\n", duration)
	m.con.Printf("  Lines of Code: ~%d\n", p.EstimatedLOC)
	m.con.Printf("  Complexity: %d/10\n", p.EstimatedComplexity)
	m.con.Println("\nEnter new values (press Enter to keep current):")

	var changes []Change
	ans, err := m.con.Prompt(ctx, fmt.Sprintf("  Duration (%s): ", duration))
	if err != nil {
		return err
	}
	if ans != "" && ans != p.EstimatedDuration {
		changes = append(changes, NewMetadataUpdated(FieldEstimatedDuration, p.EstimatedDuration, ans))
	}

	ans, err = m.con.Prompt(ctx, fmt.Sprintf("  Lines of Code (%d): ", p.EstimatedLOC))
	if err != nil {
		return err
	}
	if ans != "" {
		if n, convErr := strconv.Atoi(ans); convErr != nil || n < 0 {
			m.con.Println("Invalid number for LOC. Keeping current value.")
		} else if n != p.EstimatedLOC {
			changes = append(changes, NewMetadataUpdated(FieldEstimatedLOC, itoaOrEmpty(p.EstimatedLOC), ans))
		}
	}

	ans, err = m.con.Prompt(ctx, fmt.Sprintf("  Complexity (%d): ", p.EstimatedComplexity))
	if err != nil {
		return err
	}
	if ans != "" {
		n, convErr := strconv.Atoi(ans)
		switch {
		case convErr != nil:
			m.con.Println("Invalid number for complexity. Keeping current value.")
		case n < model.MinTotalScore || n > model.MaxTotalScore:
			m.con.Println("Complexity must be 1-10. Keeping current value.")
		case n != p.EstimatedComplexity:
			changes = append(changes, NewMetadataUpdated(FieldEstimatedComplexity, itoaOrEmpty(p.EstimatedComplexity), ans))
		}
	}

	if len(changes) == 0 {
		m.con.Println("No changes to effort estimate.")
		return nil
	}
	for _, c := range changes {
		if _, err := sess.Do(c); err != nil && !errors.Is(err, ErrNoEffect) {
			m.con.Fail("Could not apply change: %v", err)
		}
	}
	m.con.Success("✓ Effort estimate updated")
	return nil
}

func (m *Modifier) editPhases(ctx context.Context, sess *Session) error {
	for {
		p := sess.Plan()
		m.con.Printf("\n%s\nImplementation Phases\n%s\n\n", rule, rule)
		m.listItems("Phases", p.Phases)
		m.con.Println("\nOptions:")
		m.con.Println("  1. Add phase")
		m.con.Println("  2. Remove phase")
		m.con.Println("  3. Move phase")
		m.con.Println("  4. Back to main menu")
		choice, err := m.con.Prompt(ctx, "Enter choice (1-4): ")
		if err != nil {
			return err
		}
		switch choice {
		case "1":
			desc, err := m.con.Prompt(ctx, "  Phase description: ")
			if err != nil {
				return err
			}
			if desc == "" {
				m.con.Println("Phase description cannot be empty.")
				continue
			}
			pos := len(p.Phases)
			if len(p.Phases) > 0 {
				ans, err := m.con.Prompt(ctx, fmt.Sprintf("  Position (1-%d) [%d]: ", len(p.Phases)+1, len(p.Phases)+1))
				if err != nil {
					return err
				}
				if n, convErr := strconv.Atoi(ans); convErr == nil && n >= 1 && n <= len(p.Phases)+1 {
					pos = n - 1
				}
			}
			m.do(sess, NewPhaseAdded(desc, pos), fmt.Sprintf("Added phase '%s'", desc))
		case "2":
			if len(p.Phases) == 0 {
				m.con.Println("No phases in plan.")
				continue
			}
			i, ok, err := m.pick(ctx, "Enter number to remove: ", len(p.Phases))
			if err != nil {
				return err
			}
			if ok {
				m.do(sess, NewPhaseRemoved(p.Phases[i], i), fmt.Sprintf("Removed phase '%s'", p.Phases[i]))
			}
		case "3":
			if len(p.Phases) < 2 {
				m.con.Println("Need at least two phases to reorder.")
				continue
			}
			from, ok, err := m.pick(ctx, "Move phase number: ", len(p.Phases))
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			to, ok, err := m.pick(ctx, "To position: ", len(p.Phases))
			if err != nil {
				return err
			}
			if ok {
				m.do(sess, NewPhaseReordered(p.Phases[from], from, to), "Phase moved")
			}
		case "4", "":
			return nil
		default:
			m.con.Println("Invalid choice. Please try again.")
		}
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func itoaOrEmpty(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}
