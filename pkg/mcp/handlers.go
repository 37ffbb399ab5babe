package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ormasoftchile/labguide/pkg/guide/registry"
	"github.com/ormasoftchile/labguide/pkg/guide/schema"
	"github.com/ormasoftchile/labguide/pkg/guide/validate"
	"github.com/ormasoftchile/labguide/pkg/session"
)

// Handlers serve the session-bound tools.
type Handlers struct {
	sess *session.Session
	reg  *registry.Registry
}

// NewHandlers binds tools to a session and its registry.
func NewHandlers(sess *session.Session, reg *registry.Registry) *Handlers {
	return &Handlers{sess: sess, reg: reg}
}

// HandleValidate implements labguide/validate.
func HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, _ := req.GetArguments()["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	g, errs := validate.ValidateFile(path)
	if validate.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}
	msg := fmt.Sprintf("✓ %s is valid (%d steps)", g.ID(), len(g.Steps))
	if len(errs) > 0 {
		msg += "\nwarnings: " + formatWarnings(errs)
	}
	return textResult(msg), nil
}

// HandleSchema implements labguide/schema.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	schemaType, _ := req.GetArguments()["type"].(string)

	var data []byte
	var err error
	switch schemaType {
	case "guide":
		data, err = schema.GenerateGuideJSONSchema()
	case "plan":
		data, err = schema.GeneratePlanJSONSchema()
	default:
		return errorResult(fmt.Sprintf("unknown schema type %q, use 'guide' or 'plan'", schemaType)), nil
	}
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleList implements labguide/list.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type entry struct {
		ID    string `json:"id"`
		Title string `json:"title,omitempty"`
		Steps int    `json:"steps"`
	}
	var out []entry
	for _, id := range h.reg.IDs() {
		g, _ := h.reg.LookupGuideTemplate(id)
		out = append(out, entry{ID: id, Title: g.Meta.Title, Steps: len(g.Steps)})
	}
	return jsonResult(out)
}

// HandleLoad implements labguide/load.
func (h *Handlers) HandleLoad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := req.GetArguments()["guide"].(string)
	if id == "" {
		return errorResult("guide argument is required"), nil
	}
	if err := h.sess.LoadGuide(id); err != nil {
		return errorResult(err.Error()), nil
	}
	return h.status()
}

// HandleComplete implements labguide/complete.
func (h *Handlers) HandleComplete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	step, _ := req.GetArguments()["step"].(string)
	if step == "" {
		if _, ok := h.sess.CompleteCurrent(); !ok {
			return errorResult("no active step"), nil
		}
		return h.status()
	}
	if !h.sess.CompleteStep(step) {
		return errorResult(fmt.Sprintf("step %q is not the current step", step)), nil
	}
	return h.status()
}

// HandleActivate implements labguide/activate.
func (h *Handlers) HandleActivate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	var err error
	if step, _ := args["step"].(string); step != "" {
		err = h.sess.ActivateStepByID(step)
	} else if idx, ok := args["index"].(float64); ok {
		if idx != math.Trunc(idx) {
			return errorResult(fmt.Sprintf("index must be a whole number (got %v)", idx)), nil
		}
		err = h.sess.ActivateStep(int(idx))
	} else {
		return errorResult("step or index argument is required"), nil
	}
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return h.status()
}

// HandleRollback implements labguide/rollback.
func (h *Handlers) HandleRollback(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.sess.RollbackOneStep(); err != nil {
		return errorResult(err.Error()), nil
	}
	return h.status()
}

// HandleRestart implements labguide/restart.
func (h *Handlers) HandleRestart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.sess.RestartGuide(); err != nil {
		return errorResult(err.Error()), nil
	}
	return h.status()
}

// HandleStatus implements labguide/status.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.status()
}

// HandleExam implements labguide/exam.
func (h *Handlers) HandleExam(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mode, _ := req.GetArguments()["mode"].(string)
	switch mode {
	case "on":
		h.sess.EnableExam()
	case "off":
		h.sess.DisableExam()
	case "reset":
		h.sess.ResetExam()
	default:
		return errorResult(fmt.Sprintf("unknown exam mode %q, use 'on', 'off' or 'reset'", mode)), nil
	}
	return textResult(fmt.Sprintf("exam mode: %v", h.sess.ExamEnabled())), nil
}

// HandleSummary implements labguide/summary.
func (h *Handlers) HandleSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sum, err := h.sess.Summary()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return jsonResult(sum)
}

type stepView struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	Completed bool   `json:"completed"`
}

type statusView struct {
	Session  string     `json:"session"`
	Guide    string     `json:"guide,omitempty"`
	Title    string     `json:"title,omitempty"`
	Current  string     `json:"current,omitempty"`
	Index    int        `json:"index"`
	Finished bool       `json:"finished"`
	Exam     bool       `json:"exam"`
	Steps    []stepView `json:"steps,omitempty"`
}

// status reports the session state. Step titles are withheld in exam mode,
// the same way narration is.
func (h *Handlers) status() (*mcp.CallToolResult, error) {
	st := h.sess.State()
	v := statusView{
		Session:  st.SessionID,
		Guide:    st.GuideID,
		Title:    st.GuideTitle,
		Index:    st.CurrentIndex,
		Finished: st.Finished,
		Exam:     st.ExamMode,
	}
	if cur, ok := st.Current(); ok {
		v.Current = cur.ID
	}
	for _, step := range st.Steps {
		sv := stepView{ID: step.ID, Completed: step.Completed}
		if !st.ExamMode {
			sv.Title = step.Title
		}
		v.Steps = append(v.Steps, sv)
	}
	return jsonResult(v)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

func formatErrors(errs []*validate.ValidationError) string {
	var msgs []string
	for _, e := range validate.Errors(errs) {
		msgs = append(msgs, fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message))
	}
	return strings.Join(msgs, "; ")
}

func formatWarnings(errs []*validate.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == "warning" {
			msgs = append(msgs, fmt.Sprintf("%s: %s", e.Path, e.Message))
		}
	}
	return strings.Join(msgs, "; ")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
