package main

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/teleturbo/teleturbo/accounts"
	"github.com/teleturbo/teleturbo/session"
)

// AppServer ties the service to its HTTP and MCP surfaces.
type AppServer struct {
	service  *TeleTurboService
	accounts *accounts.Manager
}

// NewAppServer creates the application server.
func NewAppServer(service *TeleTurboService, am *accounts.Manager) *AppServer {
	return &AppServer{
		service:  service,
		accounts: am,
	}
}

// Start runs the HTTP server until it fails.
func (s *AppServer) Start(port string) error {
	router := setupRoutes(s)
	logrus.Infof("teleturbo listening on %s", port)
	return router.Run(port)
}

// SuccessResponse is the envelope for successful API responses.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the envelope for failed API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// respondError writes an error envelope.
func respondError(c *gin.Context, statusCode int, code, message string, details any) {
	response := ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	}

	logrus.Errorf("%s %s %s %d", c.Request.Method, c.Request.URL.Path,
		c.GetString("account"), statusCode)

	c.JSON(statusCode, response)
}

// respondSuccess writes a success envelope.
func respondSuccess(c *gin.Context, data any, message string) {
	response := SuccessResponse{
		Success: true,
		Data:    data,
		Message: message,
	}

	logrus.Infof("%s %s %s %d", c.Request.Method, c.Request.URL.Path,
		c.GetString("account"), http.StatusOK)

	c.JSON(http.StatusOK, response)
}

func parseAccountID(c *gin.Context) (int, error) {
	if v := c.GetHeader("X-Account-ID"); v != "" {
		return strconv.Atoi(v)
	}
	if v := c.Query("account_id"); v != "" {
		return strconv.Atoi(v)
	}
	return 1, nil // default account
}

// bindAccountContext resolves the request's account and returns a context
// carrying its key. Account 1 is created on first use.
func (s *AppServer) bindAccountContext(c *gin.Context, accountID int) (*accounts.Account, context.Context, error) {
	id := accountID
	if id == 0 {
		var err error
		if id, err = parseAccountID(c); err != nil {
			return nil, nil, err
		}
	}
	acc, err := s.accounts.Get(id)
	if err != nil && id == 1 {
		acc, err = s.accounts.Create("", "")
	}
	if err != nil {
		return nil, nil, err
	}
	ctx := session.WithAccount(c.Request.Context(), acc.Key)
	c.Set("account", acc.Key)
	return acc, ctx, nil
}

// setupRoutes wires all HTTP routes, including the MCP endpoint.
func setupRoutes(s *AppServer) *gin.Engine {
	router := gin.Default()

	router.GET("/health", s.handleHealthCheck)

	api := router.Group("/api/v1")
	{
		api.POST("/accounts", s.createAccountHandler)
		api.GET("/accounts", s.listAccountsHandler)
		api.DELETE("/accounts/:id", s.deleteAccountHandler)

		api.POST("/login/start", s.startLoginHandler)
		api.POST("/login/code", s.submitCodeHandler)
		api.POST("/login/password", s.submitPasswordHandler)
		api.GET("/login/status", s.loginStatusHandler)
		api.POST("/logout", s.logoutHandler)

		api.POST("/downloads", s.startDownloadHandler)
		api.GET("/downloads", s.listDownloadsHandler)
		api.GET("/downloads/:id", s.getDownloadHandler)
		api.DELETE("/downloads/:id", s.cancelDownloadHandler)

		api.GET("/system", s.systemInfoHandler)
		api.POST("/icon", s.generateIconHandler)
	}

	mcpServer := InitMCPServer(s)
	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return mcpServer
	}, nil)
	router.Any("/mcp", gin.WrapH(mcpHandler))

	return router
}

// handleHealthCheck is the health endpoint.
func (s *AppServer) handleHealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"status":  "healthy",
			"service": "teleturbo",
		},
		"message": "service is up",
	})
}

// CreateAccountRequest creates or names an account.
type CreateAccountRequest struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Proxy string `json:"proxy,omitempty"`
}

// createAccountHandler creates a new isolated account.
func (s *AppServer) createAccountHandler(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body", err.Error())
		return
	}

	acc, err := s.accounts.Create(req.Phone, req.Name)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ACCOUNT_ERROR", "failed to create account", err.Error())
		return
	}
	if req.Proxy != "" {
		if acc, err = s.accounts.SetProxy(acc.ID, req.Proxy); err != nil {
			respondError(c, http.StatusInternalServerError, "ACCOUNT_ERROR", "failed to set proxy", err.Error())
			return
		}
	}

	respondSuccess(c, acc, "account created")
}

// listAccountsHandler lists all accounts.
func (s *AppServer) listAccountsHandler(c *gin.Context) {
	respondSuccess(c, s.accounts.List(), "accounts listed")
}

// deleteAccountHandler removes an account and its session data.
func (s *AppServer) deleteAccountHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ACCOUNT_ID", "invalid account id", err.Error())
		return
	}
	s.service.dropClient("acc_" + c.Param("id"))
	if err := s.accounts.Delete(id); err != nil {
		respondError(c, http.StatusNotFound, "ACCOUNT_NOT_FOUND", "account not found", err.Error())
		return
	}
	respondSuccess(c, gin.H{"account_id": id}, "account deleted")
}

// StartLoginRequest begins the phone login flow.
type StartLoginRequest struct {
	AccountID int    `json:"account_id,omitempty"`
	Phone     string `json:"phone" binding:"required"`
}

// startLoginHandler sends the verification code to the phone.
func (s *AppServer) startLoginHandler(c *gin.Context) {
	var req StartLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body", err.Error())
		return
	}

	_, ctx, err := s.bindAccountContext(c, req.AccountID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ACCOUNT_NOT_FOUND", "account not found", err.Error())
		return
	}

	result, err := s.service.StartLogin(ctx, req.Phone)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "LOGIN_FAILED", "failed to start login", err.Error())
		return
	}
	respondSuccess(c, result, "verification code requested")
}

// SubmitCodeRequest carries the verification code.
type SubmitCodeRequest struct {
	AccountID int    `json:"account_id,omitempty"`
	Code      string `json:"code" binding:"required"`
}

// submitCodeHandler completes the code step of the login flow.
func (s *AppServer) submitCodeHandler(c *gin.Context) {
	var req SubmitCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body", err.Error())
		return
	}

	_, ctx, err := s.bindAccountContext(c, req.AccountID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ACCOUNT_NOT_FOUND", "account not found", err.Error())
		return
	}

	result, err := s.service.SubmitCode(ctx, req.Code)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "LOGIN_FAILED", "failed to submit code", err.Error())
		return
	}
	respondSuccess(c, result, "code accepted")
}

// SubmitPasswordRequest carries the 2FA password.
type SubmitPasswordRequest struct {
	AccountID int    `json:"account_id,omitempty"`
	Password  string `json:"password" binding:"required"`
}

// submitPasswordHandler completes the 2FA step of the login flow.
func (s *AppServer) submitPasswordHandler(c *gin.Context) {
	var req SubmitPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body", err.Error())
		return
	}

	_, ctx, err := s.bindAccountContext(c, req.AccountID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ACCOUNT_NOT_FOUND", "account not found", err.Error())
		return
	}

	result, err := s.service.SubmitPassword(ctx, req.Password)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "LOGIN_FAILED", "failed to submit password", err.Error())
		return
	}
	respondSuccess(c, result, "password accepted")
}

// loginStatusHandler reports authorization for the account.
func (s *AppServer) loginStatusHandler(c *gin.Context) {
	_, ctx, err := s.bindAccountContext(c, 0)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ACCOUNT_NOT_FOUND", "account not found", err.Error())
		return
	}

	result, err := s.service.LoginStatus(ctx)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "STATUS_CHECK_FAILED", "failed to check login status", err.Error())
		return
	}
	respondSuccess(c, result, "login status")
}

// logoutHandler terminates the account session.
func (s *AppServer) logoutHandler(c *gin.Context) {
	acc, ctx, err := s.bindAccountContext(c, 0)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ACCOUNT_NOT_FOUND", "account not found", err.Error())
		return
	}

	if err := s.service.Logout(ctx); err != nil {
		respondError(c, http.StatusInternalServerError, "LOGOUT_FAILED", "failed to logout", err.Error())
		return
	}
	respondSuccess(c, gin.H{"account_id": acc.ID}, "logged out")
}

// startDownloadHandler starts a background download task.
func (s *AppServer) startDownloadHandler(c *gin.Context) {
	var req DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body", err.Error())
		return
	}

	_, ctx, err := s.bindAccountContext(c, req.AccountID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ACCOUNT_NOT_FOUND", "account not found", err.Error())
		return
	}

	// Query parameters override for clients that cannot shape the body.
	ctx = session.WithDownloadDir(ctx, c.Query("destination"))
	if n, err := strconv.Atoi(c.Query("threads")); err == nil {
		ctx = session.WithThreads(ctx, n)
	}

	result, err := s.service.StartDownload(ctx, &req)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DOWNLOAD_FAILED", "failed to start download", err.Error())
		return
	}
	respondSuccess(c, result, "download started")
}

// listDownloadsHandler lists all download tasks.
func (s *AppServer) listDownloadsHandler(c *gin.Context) {
	infos := s.service.ListDownloads()
	respondSuccess(c, gin.H{"downloads": infos, "count": len(infos)}, "downloads listed")
}

// getDownloadHandler returns one download task.
func (s *AppServer) getDownloadHandler(c *gin.Context) {
	info, err := s.service.GetDownload(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusNotFound, "DOWNLOAD_NOT_FOUND", "download not found", err.Error())
		return
	}
	respondSuccess(c, info, "download status")
}

// cancelDownloadHandler cancels a download task.
func (s *AppServer) cancelDownloadHandler(c *gin.Context) {
	id := c.Param("id")
	if err := s.service.CancelDownload(id); err != nil {
		respondError(c, http.StatusNotFound, "DOWNLOAD_NOT_FOUND", "download not found", err.Error())
		return
	}
	respondSuccess(c, gin.H{"task_id": id}, "download cancelled")
}

// systemInfoHandler reports host info for download tuning.
func (s *AppServer) systemInfoHandler(c *gin.Context) {
	respondSuccess(c, s.service.SystemInfo(), "system info")
}

// GenerateIconRequest selects where the icon is written.
type GenerateIconRequest struct {
	Dir string `json:"dir,omitempty"`
}

// generateIconHandler writes the application icon to disk.
func (s *AppServer) generateIconHandler(c *gin.Context) {
	var req GenerateIconRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body", err.Error())
		return
	}

	result, err := s.service.GenerateIcon(req.Dir)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ICON_FAILED", "failed to write icon", err.Error())
		return
	}
	respondSuccess(c, result, result.Message)
}
