package qa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/input"
	"github.com/sprite-ai/reviewgate/internal/model"
	"github.com/sprite-ai/reviewgate/internal/task"
)

const ruleWidth = 70

const answerNote = "💡 **Note**: This is a keyword-based answer. " +
	"For detailed questions, review the full plan or consult your team architect."

// Deps are the Manager's collaborators.
type Deps struct {
	Console *input.Console
	Logger  *zap.Logger
	Now     func() time.Time
}

// Manager runs interactive Q&A sessions over one plan.
type Manager struct {
	console   *input.Console
	logger    *zap.Logger
	now       func() time.Time
	matcher   Matcher
	extractor Extractor

	taskID  string
	plan    *model.ImplementationPlan
	session *Session
}

// NewManager creates a manager for taskID's plan.
func NewManager(d Deps, taskID string, p *model.ImplementationPlan) *Manager {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Manager{
		console: d.Console,
		logger:  d.Logger,
		now:     d.Now,
		taskID:  taskID,
		plan:    p,
	}
}

// Session returns the last session run, or nil.
func (m *Manager) Session() *Session { return m.session }

// Ask answers a single question without touching the console.
func (m *Manager) Ask(question string) Answer {
	category, matched := m.matcher.Match(question)
	sec := m.extractor.Extract(m.plan, category)
	text := fmt.Sprintf("**%s** (from %s)\n\n%s\n\n%s", sec.Title, sec.Source, sec.Content, answerNote)
	return Answer{
		Text:            text,
		Confidence:      confidence(category, matched),
		Category:        category,
		MatchedKeywords: matched,
		Section:         sec,
	}
}

// Run loops on questions until "back", EOF, interrupt or a read error. The
// session is returned in every case; only a read error is also returned as
// err.
func (m *Manager) Run(ctx context.Context) (*Session, error) {
	now := m.now().UTC()
	m.session = &Session{
		ID:        fmt.Sprintf("qa-%s-%s", m.taskID, ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())),
		TaskID:    m.taskID,
		StartedAt: now,
		Exchanges: []Exchange{},
	}
	m.logger.Debug("q&a session started", zap.String("session_id", m.session.ID))

	m.intro()
	err := m.loop(ctx)

	ended := m.now().UTC()
	m.session.EndedAt = &ended
	c := m.console
	switch {
	case err == nil:
		m.session.ExitReason = ExitBack
		c.Success("\n✅ Q&A session complete. Asked %d questions.", len(m.session.Exchanges))
	case errors.Is(err, input.ErrInterrupted):
		m.session.ExitReason = ExitInterrupt
		c.Warn("\n⚠️ Q&A session interrupted.")
		err = nil
	default:
		m.session.ExitReason = ExitError
		c.Fail("\n❌ Error during Q&A session: %v", err)
		err = fmt.Errorf("q&a session %s: %w", m.session.ID, err)
	}
	c.Println("Returning to checkpoint...")
	c.Println()

	m.logger.Info("q&a session ended",
		zap.String("session_id", m.session.ID),
		zap.Int("exchanges", len(m.session.Exchanges)),
		zap.Stringer("exit_reason", m.session.ExitReason))
	return m.session, err
}

func (m *Manager) loop(ctx context.Context) error {
	for {
		question, err := m.console.Prompt(ctx, "\nQuestion: ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch strings.ToLower(question) {
		case "back":
			return nil
		case "help":
			m.help()
			continue
		case "":
			continue
		}

		a := m.Ask(question)
		m.display(a)
		m.session.Exchanges = append(m.session.Exchanges, Exchange{
			Question:   question,
			Answer:     a.Text,
			Confidence: a.Confidence,
			Timestamp:  m.now().UTC(),
		})
	}
}

func (m *Manager) display(a Answer) {
	c := m.console
	c.Println("\n" + strings.Repeat("-", ruleWidth))
	c.Println("ANSWER:")
	c.Println(strings.Repeat("-", ruleWidth))
	c.Printf("\n%s\n", a.Text)
	c.Printf("\n**Confidence**: %d/10\n", a.Confidence)
	if len(a.MatchedKeywords) > 0 {
		c.Printf("**Matched Keywords**: %s\n", strings.Join(a.MatchedKeywords, ", "))
	}
	c.Println("\n" + strings.Repeat("-", ruleWidth))
}

func (m *Manager) intro() {
	rule := strings.Repeat("=", ruleWidth)
	m.console.Printf("\n%s\nQ&A MODE - Ask about the implementation plan\n%s\n", rule, rule)
	m.console.Printf(`
You can ask questions like:
  - Why was this approach chosen?
  - What are the risks?
  - How long will this take?
  - What files will be created?
  - What if [scenario] happens?

Commands:
  - Type your question and press ENTER
  - Type 'back' to return to checkpoint
  - Type 'help' for more examples

`)
}

func (m *Manager) help() {
	rule := strings.Repeat("=", ruleWidth)
	m.console.Printf("\n%s\nEXAMPLE QUESTIONS BY CATEGORY:\n%s\n", rule, rule)
	m.console.Printf(`
**Rationale & Approach**:
  - Why was this approach chosen?
  - What's the rationale for using [pattern]?

**Risk Assessment**:
  - What are the risks?
  - What if [component] fails?
  - What could go wrong?

**Testing Strategy**:
  - How will this be tested?
  - What tests are needed?

**Time & Complexity**:
  - How long will this take?
  - How complex is this?
  - Could we simplify this?

**Files & Dependencies**:
  - What files will be created?
  - What dependencies are needed?

**Implementation Order**:
  - What are the implementation phases?
  - What should be done first?
`)
	m.console.Println("\n" + rule)
}

// SaveToTask stores the last session under the task file's qa_session key.
// A session already there is appended to qa_history.
func (m *Manager) SaveToTask(path string) error {
	if m.session == nil {
		return nil
	}
	f, err := task.Load(path)
	if err != nil {
		return fmt.Errorf("loading task for q&a session: %w", err)
	}
	AppendSession(&f.Meta, m.session)
	f.Meta.Updated = m.now().UTC().Format(time.RFC3339)
	if err := f.Save(); err != nil {
		return fmt.Errorf("saving q&a session: %w", err)
	}
	m.logger.Debug("q&a session saved", zap.String("path", path), zap.Int("history", len(f.Meta.QAHistory)))
	return nil
}

// AppendSession makes s the current session, keeping the previous one in
// the history.
func AppendSession(meta *task.Meta, s *Session) {
	if meta.QASession != nil {
		meta.QAHistory = append(meta.QAHistory, meta.QASession)
	}
	meta.QASession = *s
}
