package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/gin-gonic/gin"

	"github.com/ashishroygit/medical-chatbot-enterprise/chain"
	"github.com/ashishroygit/medical-chatbot-enterprise/config"
	"github.com/ashishroygit/medical-chatbot-enterprise/service"
)

type lambdaHandler struct {
	router http.Handler
	logger *slog.Logger
}

func (l *lambdaHandler) handler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	l.logger.DebugContext(ctx, "handler started", slog.String("method", request.HTTPMethod), slog.String("path", request.Path))

	req, err := toHTTPRequest(ctx, request)
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to convert proxy request", slog.Any("error", err))
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusBadRequest,
			Body:       err.Error(),
		}, nil
	}

	recorder := httptest.NewRecorder()
	l.router.ServeHTTP(recorder, req)
	return toProxyResponse(recorder), nil
}

func toHTTPRequest(ctx context.Context, request events.APIGatewayProxyRequest) (*http.Request, error) {
	body := request.Body
	if request.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(request.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode request body: %w", err)
		}
		body = string(decoded)
	}

	path := request.Path
	if path == "" {
		path = "/"
	}
	target := url.URL{Path: path}

	query := url.Values{}
	for k, vs := range request.MultiValueQueryStringParameters {
		query[k] = append([]string(nil), vs...)
	}
	for k, v := range request.QueryStringParameters {
		if _, ok := query[k]; !ok {
			query.Set(k, v)
		}
	}
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, request.HTTPMethod, target.String(), strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, vs := range request.MultiValueHeaders {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, v := range request.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	req.RemoteAddr = request.RequestContext.Identity.SourceIP
	return req, nil
}

func toProxyResponse(recorder *httptest.ResponseRecorder) events.APIGatewayProxyResponse {
	result := recorder.Result()
	headers := make(map[string]string, len(result.Header))
	for k := range result.Header {
		headers[k] = result.Header.Get(k)
	}

	response := events.APIGatewayProxyResponse{
		StatusCode:        result.StatusCode,
		Headers:           headers,
		MultiValueHeaders: result.Header,
	}

	body := recorder.Body.Bytes()
	if utf8.Valid(body) {
		response.Body = string(body)
	} else {
		response.Body = base64.StdEncoding.EncodeToString(body)
		response.IsBase64Encoded = true
	}
	return response
}

// newRouter loads configuration and assembles the chain once per cold start.
func newRouter(ctx context.Context, sm config.SecretGetter, logger *slog.Logger) http.Handler {
	if sm != nil {
		if err := config.LoadSecrets(ctx, sm, config.DefaultSecretIDs); err != nil {
			logger.ErrorContext(ctx, "failed to load secrets", slog.Any("error", err))
		}
	}

	cfg, err := config.Load()
	if err != nil {
		logger.ErrorContext(ctx, "configuration error", slog.Any("error", err))
		return service.NewDegraded(err)
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ch, err := chain.Assemble(ctx, cfg, logger)
	if err != nil {
		logger.ErrorContext(ctx, "failed to assemble chain", slog.Any("error", err))
		return service.NewDegraded(err)
	}
	return service.New(ch, logger, cfg.Debug)
}

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var sm config.SecretGetter
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to load aws config, secrets manager disabled", slog.Any("error", err))
	} else {
		sm = secretsmanager.NewFromConfig(awsCfg)
	}

	handler := lambdaHandler{
		router: newRouter(ctx, sm, logger),
		logger: logger,
	}

	lambda.Start(handler.handler)
}
