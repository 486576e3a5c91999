package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/dusk-indust/quizflow/internal/export"
	"github.com/dusk-indust/quizflow/internal/orchestrator"
	"github.com/dusk-indust/quizflow/internal/session"
)

// errUnsupportedRequest is returned when the workflow asks for input the
// console cannot provide.
var errUnsupportedRequest = errors.New("unsupported input request")

// console renders a quiz session on a terminal and reads answers from it.
type console struct {
	in  *bufio.Reader
	out io.Writer

	banner *color.Color
	prompt *color.Color
	dim    *color.Color
}

func newConsole(in io.Reader, out io.Writer) *console {
	return &console{
		in:     bufio.NewReader(in),
		out:    out,
		banner: color.New(color.FgCyan, color.Bold),
		prompt: color.New(color.FgGreen),
		dim:    color.New(color.FgHiBlack),
	}
}

// readLine returns the next input line without its line ending. A final line
// without a newline is returned as is; io.EOF is returned only when nothing
// was read.
func (c *console) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// askTopic prompts for a topic, falling back to def on an empty line or at
// end of input.
func (c *console) askTopic(def string) (string, error) {
	fmt.Fprintln(c.out, "Starting the quiz workflow, please enter a topic you want to learn about...")
	c.dim.Fprintf(c.out, "[%s] ", def)

	line, err := c.readLine()
	if errors.Is(err, io.EOF) {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("read topic: %w", err)
	}
	if topic := strings.TrimSpace(line); topic != "" {
		return topic, nil
	}
	return def, nil
}

func (c *console) section(title, body string) {
	rule := strings.Repeat("*", 56)
	c.banner.Fprintf(c.out, "\n%s\n", centered(title, len(rule)))
	fmt.Fprintln(c.out, strings.TrimRight(body, "\n"))
	c.banner.Fprintf(c.out, "%s\n\n", rule)
}

// centered pads title with asterisks to width.
func centered(title string, width int) string {
	title = " " + title + " "
	pad := width - len(title)
	if pad < 2 {
		return title
	}
	left := pad / 2
	return strings.Repeat("*", left) + title + strings.Repeat("*", pad-left)
}

// askAnswer reads the response to a string request.
func (c *console) askAnswer(req *orchestrator.Request) (string, error) {
	if req == nil || req.ResponseType != orchestrator.ResponseTypeString {
		rt := "<none>"
		if req != nil {
			rt = req.ResponseType
		}
		return "", fmt.Errorf("%w: response type %s", errUnsupportedRequest, rt)
	}
	c.prompt.Fprint(c.out, "Please provide your answer: ")
	answer, err := c.readLine()
	if err != nil {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return answer, nil
}

// play drives sess to completion, rendering each event and answering each
// request from the console. The returned snapshot records the session for
// export, whatever its outcome.
func (c *console) play(sess *orchestrator.Session) (*session.Snapshot, error) {
	snap := &session.Snapshot{
		ID:        sess.ID(),
		Topic:     sess.Topic(),
		Status:    session.StatusRunning,
		Answers:   []string{},
		Events:    []session.Event{},
		CreatedAt: time.Now(),
	}

	err := func() error {
		for ev, err := range sess.All() {
			if err != nil {
				return err
			}
			snap.Events = append(snap.Events, session.NewEvent(ev))

			switch ev.Kind {
			case orchestrator.EventContentPrepared:
				c.section("Content Agent", ev.Text)
			case orchestrator.EventQuestionAnswersReady:
				c.section("Question Answers Agent", ev.Text)
			case orchestrator.EventQuestionPosed:
				snap.Round = ev.Round
				fmt.Fprintf(c.out, "%s\n\n", ev.Text)
			case orchestrator.EventExternalInputRequested:
				answer, err := c.askAnswer(ev.Request)
				if err != nil {
					return err
				}
				if err := sess.Submit(ev.Request.ID, answer); err != nil {
					return err
				}
				snap.Answers = append(snap.Answers, answer)
			}
		}
		return nil
	}()

	snap.UpdatedAt = time.Now()
	if err != nil {
		sess.Close()
		snap.Error = err.Error()
		snap.Status = session.StatusFailed
		if errors.Is(err, context.Canceled) {
			snap.Status = session.StatusCanceled
		}
		return snap, err
	}

	out, _ := sess.Wait()
	snap.Output = out
	snap.Status = session.StatusCompleted
	return snap, nil
}

// playConsole runs one quiz on topic in the terminal.
func (a *app) playConsole(ctx context.Context, con *console, topic, exportPath string) error {
	coord, err := a.orch.NewCoordinator()
	if err != nil {
		return err
	}
	sess, err := coord.Run(ctx, topic)
	if err != nil {
		return err
	}
	a.logger.Debug("quiz started", "session", sess.ID(), "topic", topic)

	snap, err := con.play(sess)
	if exportPath != "" {
		if werr := export.WriteJSON(exportPath, export.ExportSession(snap)); werr != nil {
			return errors.Join(err, werr)
		}
		con.dim.Fprintf(con.out, "Session written to %s\n", exportPath)
	}
	return err
}
