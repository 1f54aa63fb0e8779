package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Session routes
	RouteAuthLogin   = "/auth/login"
	RouteAuthRefresh = "/auth/refresh"
	RouteAuthLogout  = "/auth/logout"

	// User routes
	RouteSignup        = "/api/v1/users/signup"
	RouteUserInfo      = "/api/v1/users/info"
	RouteUserNickname  = "/api/v1/users/nickname"
	RouteUserPassword  = "/api/v1/users/password"
	RouteCheckUsername = "/api/v1/users/check-username"
	RouteCheckNickname = "/api/v1/users/check-nickname"

	// Admin routes
	RouteAdminPing = "/api/v1/admin/ping"

	// Third-party login routes
	RouteOAuth2Authorization = "/oauth2/authorization/{provider}"
	RouteOAuth2Callback      = "/login/oauth2/code/{provider}"

	RouteHealth = "/healthz"
)
