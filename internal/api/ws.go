package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/model"
	"github.com/sprite-ai/reviewgate/internal/modify"
	"github.com/sprite-ai/reviewgate/internal/plan"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024 * 64,
	WriteBufferSize: 1024 * 64,
	CheckOrigin: func(r *http.Request) bool {
		return true // local tool; the server binds to loopback by default
	},
}

// WebSocket message types from client.
const (
	wsMsgLoad             = "load"
	wsMsgAddFile          = "add_file"
	wsMsgRemoveFile       = "remove_file"
	wsMsgAddDependency    = "add_dependency"
	wsMsgRemoveDependency = "remove_dependency"
	wsMsgUndo             = "undo"
	wsMsgSummary          = "summary"
	wsMsgSave             = "save"
	wsMsgCancel           = "cancel"
)

// WebSocket message types to client.
const (
	wsMsgLoaded    = "loaded"
	wsMsgChanged   = "changed"
	wsMsgUndone    = "undone"
	wsMsgSummaryOK = "summary"
	wsMsgSaved     = "saved"
	wsMsgCancelled = "cancelled"
	wsMsgError     = "error"
)

// wsMessage is the envelope for WebSocket messages in both directions.
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// wsLoad is the payload for "load" messages.
type wsLoad struct {
	TaskID string `json:"task_id"`
}

// wsFileOp is the payload for add_file and remove_file. List is "create"
// (default) or "modify".
type wsFileOp struct {
	Path   string `json:"path"`
	List   string `json:"list,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// wsDependencyOp is the payload for add_dependency and remove_dependency.
type wsDependencyOp struct {
	Dependency string `json:"dependency"`
	Reason     string `json:"reason,omitempty"`
}

// wsLoadedResponse is sent after a plan is loaded.
type wsLoadedResponse struct {
	ConnectionID string                    `json:"connection_id"`
	SessionID    string                    `json:"session_id"`
	Plan         *model.ImplementationPlan `json:"plan"`
}

// wsChangeResponse reports an applied or undone change.
type wsChangeResponse struct {
	Change            string                    `json:"change"`
	ModificationCount int                       `json:"modification_count"`
	Plan              *model.ImplementationPlan `json:"plan"`
}

// wsSummaryResponse lists the session's changes.
type wsSummaryResponse struct {
	Summary string   `json:"summary"`
	Changes []string `json:"changes"`
}

// wsSavedResponse is sent once the plan is stored as a new version.
type wsSavedResponse struct {
	Version     int    `json:"version"`
	ChangeCount int    `json:"change_count"`
	SessionPath string `json:"session_path,omitempty"`
}

// wsSession is one connection's modification session.
type wsSession struct {
	connID string
	sess   *modify.Session
	base   *model.ImplementationPlan
	conn   *websocket.Conn
	server *Server
	logger *zap.Logger
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	ws := &wsSession{connID: connID, conn: conn, server: s, logger: s.logger.With(zap.String("conn_id", connID))}
	ws.logger.Debug("websocket connected")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.logger.Warn("websocket read", zap.Error(err))
			}
			ws.abandon()
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			ws.sendError("invalid message format")
			continue
		}

		switch msg.Type {
		case wsMsgLoad:
			ws.load(msg.Data)
		case wsMsgAddFile, wsMsgRemoveFile, wsMsgAddDependency, wsMsgRemoveDependency:
			ws.change(msg.Type, msg.Data)
		case wsMsgUndo:
			ws.undo()
		case wsMsgSummary:
			ws.summary()
		case wsMsgSave:
			ws.save()
		case wsMsgCancel:
			ws.cancel()
		default:
			ws.sendError("unknown message type: " + msg.Type)
		}
	}
}

func (ws *wsSession) load(data json.RawMessage) {
	var req wsLoad
	if err := json.Unmarshal(data, &req); err != nil || req.TaskID == "" {
		ws.sendError("invalid load data")
		return
	}
	rec, err := ws.server.plans.Load(req.TaskID)
	if err != nil {
		ws.sendError("loading plan: " + err.Error())
		return
	}
	ws.abandon()

	sess := modify.NewSession(req.TaskID, rec.Plan, ws.server.now)
	if err := sess.Start(); err != nil {
		ws.sendError(err.Error())
		return
	}
	ws.sess = sess
	ws.base = rec.Plan
	ws.logger.Info("modification session started", zap.String("task_id", req.TaskID), zap.String("session_id", sess.ID))
	ws.send(wsMsgLoaded, wsLoadedResponse{ConnectionID: ws.connID, SessionID: sess.ID, Plan: sess.Plan()})
}

func (ws *wsSession) change(op string, data json.RawMessage) {
	if ws.sess == nil {
		ws.sendError("no plan loaded")
		return
	}
	c, err := decodeChange(op, data)
	if err != nil {
		ws.sendError(err.Error())
		return
	}
	applied, err := ws.sess.Do(c)
	if err != nil {
		ws.sendError(err.Error())
		return
	}
	ws.send(wsMsgChanged, wsChangeResponse{
		Change:            applied.Describe(),
		ModificationCount: ws.sess.ModificationCount(),
		Plan:              ws.sess.Plan(),
	})
}

func decodeChange(op string, data json.RawMessage) (modify.Change, error) {
	switch op {
	case wsMsgAddFile, wsMsgRemoveFile:
		var req wsFileOp
		if err := json.Unmarshal(data, &req); err != nil || req.Path == "" {
			return modify.Change{}, fmt.Errorf("invalid %s data", op)
		}
		list := modify.ListCreate
		switch req.List {
		case "", "create":
		case "modify":
			list = modify.ListModify
		default:
			return modify.Change{}, fmt.Errorf("unknown file list %q", req.List)
		}
		if op == wsMsgAddFile {
			return modify.NewFileAdded(list, req.Path, req.Reason), nil
		}
		return modify.NewFileRemoved(list, req.Path, req.Reason), nil
	default:
		var req wsDependencyOp
		if err := json.Unmarshal(data, &req); err != nil || req.Dependency == "" {
			return modify.Change{}, fmt.Errorf("invalid %s data", op)
		}
		if op == wsMsgAddDependency {
			return modify.NewDependencyAdded(req.Dependency, req.Reason), nil
		}
		return modify.NewDependencyRemoved(req.Dependency, req.Reason), nil
	}
}

func (ws *wsSession) undo() {
	if ws.sess == nil {
		ws.sendError("no plan loaded")
		return
	}
	c, err := ws.sess.Undo()
	if errors.Is(err, modify.ErrNothingToUndo) {
		ws.sendError("nothing to undo")
		return
	}
	if err != nil {
		ws.sendError(err.Error())
		return
	}
	ws.send(wsMsgUndone, wsChangeResponse{
		Change:            c.Describe(),
		ModificationCount: ws.sess.ModificationCount(),
		Plan:              ws.sess.Plan(),
	})
}

func (ws *wsSession) summary() {
	if ws.sess == nil {
		ws.sendError("no plan loaded")
		return
	}
	resp := wsSummaryResponse{Summary: ws.sess.Tracker().Summary(), Changes: []string{}}
	for _, c := range ws.sess.Changes() {
		resp.Changes = append(resp.Changes, c.Describe())
	}
	ws.send(wsMsgSummaryOK, resp)
}

func (ws *wsSession) save() {
	if ws.sess == nil {
		ws.sendError("no plan loaded")
		return
	}
	if ws.sess.ModificationCount() == 0 {
		ws.sendError("no modifications to save")
		return
	}
	if problems := modify.Validate(ws.sess.Original(), ws.sess.Changes()); len(problems) > 0 {
		ws.sendError("validation failed: " + problems[0])
		return
	}
	sess := ws.sess
	// Record also makes the version the current plan. The session stays
	// open until it succeeds so a failed save can be retried.
	v, err := ws.versions(sess.TaskID).Record(ws.base, sess.Plan(),
		fmt.Sprintf("Plan modification session (%d changes)", sess.ModificationCount()), "api")
	if err != nil {
		ws.sendError("saving plan version: " + err.Error())
		return
	}
	if err := sess.End(); err != nil {
		ws.sendError(err.Error())
		return
	}

	resp := wsSavedResponse{Version: v.Number, ChangeCount: sess.ModificationCount()}
	if store := ws.server.sessions; store != nil {
		if path, err := store.Save(sess); err != nil {
			ws.logger.Warn("could not persist modification session", zap.Error(err))
		} else {
			resp.SessionPath = path
			if _, err := store.SaveSummary(sess); err != nil {
				ws.logger.Warn("could not persist session summary", zap.Error(err))
			}
		}
	}
	ws.sess = nil
	ws.send(wsMsgSaved, resp)
}

func (ws *wsSession) cancel() {
	if ws.sess == nil {
		ws.sendError("no plan loaded")
		return
	}
	ws.abandon()
	ws.send(wsMsgCancelled, map[string]string{"message": modify.MsgDiscarded})
}

// abandon cancels an open session, e.g. when the client disconnects.
func (ws *wsSession) abandon() {
	if ws.sess == nil {
		return
	}
	if err := ws.sess.Cancel(); err != nil {
		ws.logger.Debug("cancelling session", zap.Error(err))
	}
	ws.logger.Info("modification session cancelled", zap.String("session_id", ws.sess.ID))
	ws.sess = nil
}

func (ws *wsSession) versions(taskID string) *plan.VersionManager {
	return ws.server.plans.Versions(taskID, ws.logger)
}

func (ws *wsSession) send(msgType string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		ws.logger.Warn("ws marshal", zap.Error(err))
		return
	}
	msg := wsMessage{Type: msgType, Data: raw}
	if err := ws.conn.WriteJSON(msg); err != nil {
		ws.logger.Warn("ws write", zap.Error(err))
	}
}

func (ws *wsSession) sendError(errMsg string) {
	ws.send(wsMsgError, map[string]string{"message": errMsg})
}
