package service

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html"
	"html/template"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ashishroygit/medical-chatbot-enterprise/chain"
	"github.com/ashishroygit/medical-chatbot-enterprise/service/query"
)

const (
	emptyMessageText = "Please type a message."
	requestIDHeader  = "X-Request-ID"
	requestIDKey     = "request_id"
)

//go:embed templates/*.html
var templates embed.FS

type Invoker interface {
	Invoke(ctx context.Context, in chain.Input) (chain.Result, error)
}

type server struct {
	chain     Invoker
	logger    *slog.Logger
	debugMode bool
}

// New returns the chat router. In debug mode a failed chat answers with the raw error text,
// otherwise with a request id that can be matched against the logs.
func New(ch Invoker, logger *slog.Logger, debugMode bool) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	s := &server{
		chain:     ch,
		logger:    logger,
		debugMode: debugMode,
	}

	router := newRouter()
	router.SetHTMLTemplate(template.Must(template.ParseFS(templates, "templates/*.html")))

	router.GET("/", s.indexHandler)
	router.POST("/get", s.chatHandler)
	router.GET("/health", healthHandler)

	return router
}

// NewDegraded is served when the configuration could not be loaded: the index page reports
// the cause and only the health check keeps working.
func NewDegraded(cause error) *gin.Engine {
	page := []byte("<pre>" + html.EscapeString(cause.Error()) + "</pre>")

	router := newRouter()
	router.GET("/", func(ctx *gin.Context) {
		ctx.Data(http.StatusInternalServerError, "text/html; charset=utf-8", page)
	})
	router.GET("/health", healthHandler)

	return router
}

func newRouter() *gin.Engine {
	router := gin.Default()
	router.Use(cors.Default()) // Allow all origins
	router.Use(requestID)
	return router
}

func requestID(ctx *gin.Context) {
	id := ctx.GetHeader(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	ctx.Set(requestIDKey, id)
	ctx.Header(requestIDHeader, id)
	ctx.Next()
}

func (s *server) indexHandler(ctx *gin.Context) {
	ctx.HTML(http.StatusOK, "chat.html", nil)
}

func (s *server) chatHandler(ctx *gin.Context) {
	// body fields only, a msg in the query string does not count
	msg := strings.TrimSpace(ctx.PostForm(query.MessageField))
	if msg == "" {
		ctx.String(http.StatusBadRequest, emptyMessageText)
		return
	}

	result, err := s.chain.Invoke(ctx.Request.Context(), chain.Input{Input: msg})
	if err != nil {
		id := ctx.GetString(requestIDKey)
		stage := "unknown"
		var chainErr *chain.Error
		if errors.As(err, &chainErr) {
			stage = string(chainErr.Stage)
		}
		s.logger.ErrorContext(ctx, "failed to answer chat message",
			slog.Any("error", err),
			slog.String("stage", stage),
			slog.String(requestIDKey, id),
			slog.String("handler_stack", string(debug.Stack())),
		)

		detail := err.Error()
		if !s.debugMode {
			detail = fmt.Sprintf("internal error (request id %s)", id)
		}
		ctx.String(http.StatusInternalServerError, "Error: %s", detail)
		return
	}

	s.logger.DebugContext(ctx, "answered chat message", slog.Int("context_documents", len(result.Context)))
	ctx.String(http.StatusOK, strings.TrimSpace(result.Answer))
}

func healthHandler(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, query.HealthBody{Status: "ok"})
}
