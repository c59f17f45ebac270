// Package transport implements the JSON-over-HTTP front end (C8): one
// POST /rpc endpoint that dispatches a {operation, parameters, session_id}
// envelope onto the operation engine and replies with
// {status, data, error_message, error_code}, per spec.md §6.
package transport

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"omnifs/internal/engine"
	"omnifs/internal/users"
)

// Request is the wire shape of every RPC call.
type Request struct {
	Operation  string         `json:"operation" binding:"required"`
	Parameters map[string]any `json:"parameters"`
	SessionID  string         `json:"session_id"`
}

// Response is the wire shape of every RPC reply.
type Response struct {
	Status       string `json:"status"`
	Data         any    `json:"data,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	ErrorCode    int    `json:"error_code,omitempty"`
}

// Server wraps an *engine.Engine with a gin router implementing the single
// dispatch endpoint.
type Server struct {
	eng    *engine.Engine
	log    *zap.Logger
	router *gin.Engine
}

// New builds a Server around eng. gin runs in release mode without its
// request-logging middleware; failed RPCs are logged through log.
func New(eng *engine.Engine, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{eng: eng, log: log, router: r}
	r.POST("/rpc", s.handleRPC)
	return s
}

// Handler returns the http.Handler to pass to an http.Server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleRPC(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Status:       "error",
			ErrorMessage: "malformed request: " + err.Error(),
			ErrorCode:    int(engine.ErrInvalidArgument.Code),
		})
		return
	}

	data, err := s.dispatch(req)
	if err != nil {
		s.log.Info("rpc error", zap.String("operation", req.Operation), zap.Error(err))
		c.JSON(http.StatusOK, Response{
			Status:       "error",
			ErrorMessage: err.Error(),
			ErrorCode:    engine.CodeOf(err),
		})
		return
	}
	c.JSON(http.StatusOK, Response{Status: "success", Data: data})
}

func (s *Server) dispatch(req Request) (any, error) {
	p := params(req.Parameters)
	switch req.Operation {
	case "user_login":
		info, err := s.eng.Login(p.str("username"), p.str("password"))
		if err != nil {
			return nil, err
		}
		return gin.H{"session_id": info.Token}, nil

	case "user_logout":
		return nil, s.eng.Logout(req.SessionID)

	case "user_create":
		role := users.RoleNormal
		if p.str("role") == "admin" || p.str("role") == "Admin" {
			role = users.RoleAdmin
		}
		return nil, s.eng.UserCreate(req.SessionID, p.str("username"), p.str("password"), role)

	case "user_delete":
		return nil, s.eng.UserDelete(req.SessionID, p.str("username"))

	case "user_list":
		list, err := s.eng.UserList(req.SessionID)
		if err != nil {
			return nil, err
		}
		return gin.H{"users": list}, nil

	case "get_session_info":
		info, err := s.eng.GetSessionInfo(req.SessionID)
		if err != nil {
			return nil, err
		}
		return gin.H{"username": info.Username, "role": roleName(info.Role), "user_id": info.UserID}, nil

	case "dir_create":
		return nil, s.eng.DirCreate(req.SessionID, p.str("path"))

	case "dir_list":
		entries, err := s.eng.DirList(req.SessionID, p.str("path"))
		if err != nil {
			return nil, err
		}
		out := make([]gin.H, len(entries))
		for i, e := range entries {
			out[i] = gin.H{"name": e.Name, "is_directory": e.IsDir, "size": e.Size}
		}
		return gin.H{"entries": out}, nil

	case "dir_delete":
		return nil, s.eng.DirDelete(req.SessionID, p.str("path"))

	case "dir_exists":
		ok, err := s.eng.DirExists(req.SessionID, p.str("path"))
		if err != nil {
			return nil, err
		}
		return gin.H{"exists": ok}, nil

	case "file_create":
		return nil, s.eng.FileCreate(req.SessionID, p.str("path"), []byte(p.str("data")))

	case "file_read":
		content, err := s.eng.FileRead(req.SessionID, p.str("path"))
		if err != nil {
			return nil, err
		}
		return gin.H{"content": string(content)}, nil

	case "file_edit":
		return nil, s.eng.FileEdit(req.SessionID, p.str("path"), []byte(p.str("data")), p.uint64("index"))

	case "file_delete":
		return nil, s.eng.FileDelete(req.SessionID, p.str("path"))

	case "file_truncate":
		return nil, s.eng.FileTruncate(req.SessionID, p.str("path"))

	case "file_exists":
		ok, err := s.eng.FileExists(req.SessionID, p.str("path"))
		if err != nil {
			return nil, err
		}
		return gin.H{"exists": ok}, nil

	case "file_rename":
		return nil, s.eng.FileRename(req.SessionID, p.str("old_path"), p.str("new_path"))

	case "get_metadata":
		m, err := s.eng.GetMetadata(req.SessionID, p.str("path"))
		if err != nil {
			return nil, err
		}
		return gin.H{
			"name": m.Name, "is_directory": m.IsDir, "size": m.Size,
			"owner_id": m.Owner, "permissions": m.Perm,
			"created": m.CreatedAt, "modified": m.ModifiedAt,
		}, nil

	case "set_permissions":
		return nil, s.eng.SetPermissions(req.SessionID, p.str("path"), uint32(p.uint64("permissions")))

	case "get_stats":
		st, err := s.eng.GetStats(req.SessionID)
		if err != nil {
			return nil, err
		}
		return gin.H{
			"total_size":      st.TotalImageSize,
			"used_space":      uint64(st.UsedBlocks) * uint64(st.BlockSize),
			"free_space":      uint64(st.FreeBlocks+1) * uint64(st.BlockSize), // +1 counts the reserved sentinel block as free space, never used space
			"file_count":      st.FileCount,
			"directory_count": st.DirectoryCount,
		}, nil

	case "get_error_message":
		msg, ok := engine.MessageForCode(int(p.uint64("error_code")))
		if !ok {
			return nil, engine.ErrInvalidArgument
		}
		return gin.H{"message": msg}, nil

	default:
		return nil, engine.ErrInvalidArgument
	}
}

func roleName(r users.Role) string {
	if r == users.RoleAdmin {
		return "admin"
	}
	return "normal"
}

// params is a light accessor over the untyped parameters map, tolerating
// absent keys and the numeric-vs-string looseness of decoded JSON.
type params map[string]any

func (p params) str(key string) string {
	v, _ := p[key].(string)
	return v
}

func (p params) uint64(key string) uint64 {
	switch v := p[key].(type) {
	case float64:
		return uint64(v)
	case string:
		var n uint64
		_, _ = fmt.Sscan(v, &n)
		return n
	default:
		return 0
	}
}
