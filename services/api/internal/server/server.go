package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"learncircle/internal/ratelimit"
	"learncircle/internal/security"
	"learncircle/internal/util"
	"learncircle/pkg/domain"
	"learncircle/pkg/store"
	"learncircle/services/api/internal/app"
)

const (
	maxJSONBytes         = 1 << 20
	maxCreateCourseBytes = 50 << 20

	createCourseDeadline = 10 * time.Minute
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                        *app.App
	Redis                      *redis.Client
	TrustedProxies             *util.TrustedProxies
	RegisterRateLimitPerMinute int
	LoginRateLimitPerMinute    int
}

// Server exposes the course, circle and account endpoints.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	trustedProxies  *util.TrustedProxies
	alerter         *security.AuditAlerter
	registerLimiter *ratelimit.FixedWindowLimiter
	loginLimiter    *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	if cfg.Redis == nil {
		return nil, errors.New("redis client required for rate limiting")
	}
	registerLimit := cfg.RegisterRateLimitPerMinute
	if registerLimit <= 0 {
		registerLimit = 5
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		limiter, err := ratelimit.NewFixedWindowLimiter(cfg.Redis, "learncircle:ratelimit:"+name, limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	registerLimiter, err := newLimiter("register", registerLimit)
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}
	s := &Server{
		app:             cfg.App,
		mux:             http.NewServeMux(),
		trustedProxies:  cfg.TrustedProxies,
		alerter:         security.NewAuditAlerter(cfg.Redis, "learncircle:alerts"),
		registerLimiter: registerLimiter,
		loginLimiter:    loginLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("learncircle", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/.well-known/jwks.json", s.handleJWKS)

	// auth
	s.mux.HandleFunc("/api/auth/register", s.handleRegister)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.Handle("/api/auth/logout", s.authenticated(s.handleLogout))

	// courses
	s.mux.Handle("/api/courses/create", s.authenticated(s.handleCreateCourse))
	s.mux.Handle("/api/courses/creator", s.authenticated(s.handleCoursesByCreator))
	s.mux.Handle("/api/courses/publish", s.authenticated(s.handlePublishCourse))
	s.mux.Handle("/api/courses/pdf", s.authenticated(s.handleUploadPDF))
	s.mux.Handle("/api/courses/", s.authenticated(s.handleCourseByID))
	s.mux.Handle("/api/chapters/generate", s.authenticated(s.handleGenerateChapter))

	// circles
	s.mux.Handle("/api/circles/create", s.authenticated(s.handleCreateCircle))
	s.mux.Handle("/api/circles", s.authenticated(s.handleListCircles))
	s.mux.Handle("/api/circles/", s.authenticated(s.handleCircleByID))
	s.mux.Handle("/invite/", s.authenticated(s.handleJoinCircle))

	// user
	s.mux.Handle("/api/user", s.authenticated(s.handleUser))
	s.mux.Handle("/api/user-auth", s.authenticated(s.handleUserAuth))
	s.mux.Handle("/api/user/courses", s.authenticated(s.handleUserCourses))
	s.mux.Handle("/api/user/request-role", s.authenticated(s.handleRequestRole))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	keys := s.app.JWKS()
	if keys == nil {
		keys = []store.JWK{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

// auth wrapper
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, security.EventAuthorize, security.OutcomeFail, "reason", "missing_token")
			writeError(w, r, http.StatusUnauthorized, "invalid_token", "Unauthorized. Missing bearer token.")
			return
		}
		user, ok := s.app.UserFromToken(token)
		if !ok {
			s.audit(r, security.EventAuthorize, security.OutcomeFail, "reason", "invalid_token")
			writeError(w, r, http.StatusUnauthorized, "invalid_token", app.PublicMessage(app.ErrInvalidToken))
			return
		}
		ctx := util.ContextWithLogger(r.Context(), util.LoggerFromContext(r.Context()).With("user_id", user.ID))
		next(w, r.WithContext(ctx), user)
	})
}

// auth handlers
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	if !s.allowRate(w, r, s.registerLimiter) {
		s.audit(r, security.EventRegister, security.OutcomeRateLimited)
		return
	}
	var req registerRequest
	if !decodeJSON(w, r, maxJSONBytes, &req) {
		return
	}
	user, err := s.app.Register(r.Context(), app.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
	})
	if err != nil {
		s.audit(r, security.EventRegister, security.OutcomeFail, "reason", app.KindOf(err).Code())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, security.EventRegister, security.OutcomeSuccess, "user_id", user.ID)
	respond(w, http.StatusCreated, "Registration successful!", user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter) {
		s.audit(r, security.EventLogin, security.OutcomeRateLimited)
		return
	}
	var req loginRequest
	if !decodeJSON(w, r, maxJSONBytes, &req) {
		return
	}
	user, token, err := s.app.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.audit(r, security.EventLogin, security.OutcomeFail, "reason", app.KindOf(err).Code())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, security.EventLogin, security.OutcomeSuccess, "user_id", user.ID)
	respond(w, http.StatusOK, "Login successful!", map[string]string{"idToken": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	token, _ := bearerToken(r)
	if err := s.app.Logout(r.Context(), token); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, security.EventLogout, security.OutcomeSuccess, "user_id", user.ID)
	respond(w, http.StatusOK, "Logout successful!", nil)
}

// course handlers
func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	extendDeadline(w, createCourseDeadline)
	var req createCourseRequest
	if !decodeJSON(w, r, maxCreateCourseBytes, &req) {
		return
	}
	res, err := s.app.CreateCourse(r.Context(), user.ID, app.CreateCourseInput{
		Name:        req.Name,
		Description: req.Description,
		Content:     req.Content,
		CircleID:    req.CircleID,
		PDFURLs:     req.PDFURLs,
		VideoURLs:   req.VideoURLs,
		Lang:        req.Lang,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	respond(w, http.StatusCreated,
		"Course created successfully. Please wait for our machine learning to generate your content.", res)
}

func (s *Server) handleCoursesByCreator(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	courses, err := s.app.GetCoursesByCreator(r.Context(), user.ID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if len(courses) == 0 {
		respond(w, http.StatusOK, "No courses found for this creator", []domain.Course{})
		return
	}
	respond(w, http.StatusOK, "Courses retrieved successfully.", courses)
}

func (s *Server) handlePublishCourse(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	var req publishRequest
	if !decodeJSON(w, r, maxJSONBytes, &req) {
		return
	}
	if err := s.app.AddCourseToCircle(r.Context(), user.ID, req.CourseID, req.CircleIDs); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Course published to circles successfully.", nil)
}

func (s *Server) handleUploadPDF(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.app.MaxPDFBytes()+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeAppError(w, r, app.ErrFileTooLarge)
			return
		}
		s.writeAppError(w, r, app.ErrFileRequired)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		s.writeAppError(w, r, app.ErrFileRequired)
		return
	}
	defer file.Close()
	res, err := s.app.UploadPDF(r.Context(), user.ID, file)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "PDF uploaded successfully.", res)
}

// handleCourseByID serves /api/courses/{id}, /api/courses/{id}/job and
// /api/courses/{id}/unpublished-circles.
func (s *Server) handleCourseByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/courses/"), "/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" || strings.Contains(sub, "/") {
		notFound(w, r)
		return
	}
	switch sub {
	case "":
	case "job":
		s.handleContentJob(w, r, user, id)
		return
	case "unpublished-circles":
		s.handleUnpublishedCircles(w, r, user, id)
		return
	default:
		notFound(w, r)
		return
	}
	circleID := r.URL.Query().Get("circleId")
	switch r.Method {
	case http.MethodGet:
		course, err := s.app.GetCourseByID(r.Context(), user.ID, id, circleID)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		respond(w, http.StatusOK, "Course data retrieved successfully.", course)
	case http.MethodPut:
		var req updateCourseRequest
		if !decodeJSON(w, r, maxCreateCourseBytes, &req) {
			return
		}
		course, err := s.app.UpdateCourse(r.Context(), user.ID, id, circleID, app.UpdateCourseInput{
			Name:        req.Name,
			Description: req.Description,
			Content:     req.Content,
		})
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		respond(w, http.StatusOK, "Course updated successfully.", course)
	case http.MethodDelete:
		result, err := s.app.DeleteCourse(r.Context(), user.ID, id, circleID)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		respond(w, http.StatusOK, "Course deleted successfully.", map[string]string{"result": result})
	default:
		methodNotAllowed(w, r)
	}
}

func (s *Server) handleContentJob(w http.ResponseWriter, r *http.Request, user domain.User, courseID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	job, err := s.app.GetContentJob(r.Context(), user.ID, courseID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Content job retrieved successfully.", job)
}

func (s *Server) handleUnpublishedCircles(w http.ResponseWriter, r *http.Request, user domain.User, courseID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	out, err := s.app.GetUnpublishedCircles(r.Context(), user.ID, courseID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Unpublished circles retrieved successfully.", out)
}

func (s *Server) handleGenerateChapter(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	extendDeadline(w, s.app.ContentTimeout()+time.Minute)
	var req generateChapterRequest
	if !decodeJSON(w, r, maxJSONBytes, &req) {
		return
	}
	out, err := s.app.GenerateChapter(r.Context(), user.ID, req.Title, lengthText(req.Length), req.Lang)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Chapters generated successfully.", out)
}

// circle handlers
func (s *Server) handleCreateCircle(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	var req createCircleRequest
	if !decodeJSON(w, r, maxJSONBytes, &req) {
		return
	}
	res, err := s.app.CreateCircle(r.Context(), user.ID, req.CircleName, req.Description)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, "Circle created successfully", res)
}

func (s *Server) handleListCircles(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	circles, err := s.app.ListUserCircles(r.Context(), user.ID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Circles retrieved successfully.", circles)
}

func (s *Server) handleCircleByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/api/circles/")
	if id == "" || strings.Contains(id, "/") {
		notFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	details, err := s.app.GetCircleDetails(r.Context(), user.ID, id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Circle details retrieved successfully.", details)
}

func (s *Server) handleJoinCircle(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/invite/")
	if id == "" || strings.Contains(id, "/") {
		notFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	result, err := s.app.JoinCircle(r.Context(), user.ID, id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	msg := "Joined circle successfully."
	if result == app.AlreadyMember {
		msg = "You are already a member of this circle."
	}
	respond(w, http.StatusOK, msg, map[string]string{"result": result, "circleId": id})
}

// user handlers
func (s *Server) handleUser(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		profile, err := s.app.GetProfile(r.Context(), user.ID)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		respond(w, http.StatusOK, "User profile retrieved successfully", profile)
	case http.MethodPut:
		var req updateProfileRequest
		if !decodeJSON(w, r, maxJSONBytes, &req) {
			return
		}
		if _, err := s.app.UpdateProfile(r.Context(), user.ID, req.Name); err != nil {
			s.writeAppError(w, r, err)
			return
		}
		respond(w, http.StatusOK, "User profile updated successfully.", nil)
	default:
		methodNotAllowed(w, r)
	}
}

func (s *Server) handleUserAuth(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r)
		return
	}
	var req updateAuthRequest
	if !decodeJSON(w, r, maxJSONBytes, &req) {
		return
	}
	res, err := s.app.UpdateCredentials(r.Context(), user.ID, req.Email, req.Password)
	if err != nil {
		if req.Password != "" {
			s.audit(r, security.EventPasswordChange, security.OutcomeFail, "user_id", user.ID, "reason", app.KindOf(err).Code())
		}
		s.writeAppError(w, r, err)
		return
	}
	var msg string
	switch {
	case res.EmailChanged && res.PasswordChanged:
		msg = "Email and password updated successfully."
	case res.PasswordChanged:
		msg = "Password updated successfully."
	default:
		msg = "Email updated successfully."
	}
	if res.PasswordChanged {
		s.audit(r, security.EventPasswordChange, security.OutcomeSuccess, "user_id", user.ID)
	}
	respond(w, http.StatusOK, msg, nil)
}

func (s *Server) handleUserCourses(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	courses, err := s.app.GetUserCourses(r.Context(), user.ID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if len(courses) == 0 {
		respond(w, http.StatusOK, "No courses found.", courses)
		return
	}
	respond(w, http.StatusOK, "Courses retrieved successfully.", courses)
}

func (s *Server) handleRequestRole(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	var req roleRequest
	if !decodeJSON(w, r, maxJSONBytes, &req) {
		return
	}
	res, err := s.app.RequestRoleChange(r.Context(), user.ID, req.Message)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Role change request submitted.", res)
}

// lengthText unwraps a JSON string; any other value is passed through as
// its raw text and left for GenerateChapter to reject.
func lengthText(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return trimmed
}

// extendDeadline lifts the server-wide read and write timeouts for routes that
// wait on large uploads or the content generator.
func extendDeadline(w http.ResponseWriter, d time.Duration) {
	rc := http.NewResponseController(w)
	deadline := time.Now().Add(d)
	_ = rc.SetReadDeadline(deadline)
	_ = rc.SetWriteDeadline(deadline)
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	ip := util.ClientIP(r, s.trustedProxies)
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", ip,
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == security.OutcomeSuccess {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
	res, err := s.alerter.Observe(r.Context(), event, outcome, ip)
	if err != nil {
		logger.Warn("security_alert_check_failed", "event", event, "err", err)
		return
	}
	if res.Triggered {
		logger.Error("security_alert",
			"event", event,
			"outcome", outcome,
			"ip", ip,
			"count", res.Count,
			"threshold", res.Threshold,
			"window", res.Window.String(),
		)
	}
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	ok, retryAfter := limiter.Allow(r.Context(), key)
	if ok {
		return true
	}
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeError(w, r, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again later.")
	return false
}

func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	kind := app.KindOf(err)
	switch kind {
	case app.KindInternal, app.KindUpstream:
		util.LoggerFromContext(r.Context()).Error("request_failed", "code", kind.Code(), "err", err)
	case app.KindUnauthorized:
		s.audit(r, security.EventAuthorize, security.OutcomeDenied, "reason", app.PublicMessage(err))
	}
	writeError(w, r, kind.HTTPStatus(), kind.Code(), app.PublicMessage(err))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "Payload too large.")
		return false
	}
	writeError(w, r, http.StatusBadRequest, "invalid_json", "Invalid JSON body.")
	return false
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		slog.Debug("missing bearer prefix", "path", r.URL.Path)
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed.")
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, "not_found", "Not found.")
}

type envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type errorResponse struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func respond(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, envelope{Status: status, Message: msg, Data: data})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	requestID := util.RequestIDFromRequest(r)
	if requestID == "" {
		requestID = strings.TrimSpace(w.Header().Get("X-Request-Id"))
	}
	writeJSON(w, status, errorResponse{
		Status:    status,
		Message:   msg,
		Code:      code,
		RequestID: requestID,
	})
}
