package serve

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ashishroygit/medical-chatbot-enterprise/config"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func unsetKeys(t *testing.T) {
	t.Helper()
	t.Setenv(config.VectorStoreKeyEnv, "")
	t.Setenv(config.OpenAIKeyEnv, "sk-test")
	t.Setenv("VECTOR_STORE_BACKEND", "")
}

func TestNewHandlerDegradedOnMissingKey(t *testing.T) {
	unsetKeys(t)

	handler, err := newHandler(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	var missing *config.MissingEnvError
	require.ErrorAs(t, err, &missing)
	require.NotNil(t, handler)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "<pre>Missing required environment variable: "+config.VectorStoreKeyEnv)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestServeReturnsConfigErrorAfterShutdown(t *testing.T) {
	unsetKeys(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	app := &cli.App{
		Name:   "medchat",
		Flags:  Flags(),
		Action: Serve,
	}
	err := app.RunContext(ctx, []string{"medchat", "--addr", "127.0.0.1:0"})

	var missing *config.MissingEnvError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, config.VectorStoreKeyEnv, missing.Name)
}
