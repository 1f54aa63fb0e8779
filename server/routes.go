package server

import (
	"github.com/jrsteele09/go-blog-server/users"
)

func (s *Server) initRoutes() {
	// SESSION
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.RateLimitMiddleware))
	s.RegisterRouteFunc("POST "+RouteAuthRefresh, s.RefreshHandler())
	s.RegisterRouteFunc("POST "+RouteAuthLogout, s.LogoutHandler())

	// USERS
	s.RegisterRouteFunc("POST "+RouteSignup, s.SignupHandler())
	s.RegisterRouteHandler("GET "+RouteUserInfo, ChainMiddleware(s.UserInfoHandler(), s.RequireAuth))
	s.RegisterRouteHandler("DELETE "+RouteUserInfo, ChainMiddleware(s.WithdrawHandler(), s.RequireAuth))
	s.RegisterRouteHandler("PATCH "+RouteUserNickname, ChainMiddleware(s.UpdateNicknameHandler(), s.RequireAuth))
	s.RegisterRouteHandler("PATCH "+RouteUserPassword, ChainMiddleware(s.ChangePasswordHandler(), s.RequireAuth))
	s.RegisterRouteHandler("GET "+RouteCheckUsername, ChainMiddleware(s.CheckUsernameHandler(), s.RateLimitMiddleware))
	s.RegisterRouteHandler("GET "+RouteCheckNickname, ChainMiddleware(s.CheckNicknameHandler(), s.RateLimitMiddleware))

	// ADMIN
	s.RegisterRouteHandler("GET "+RouteAdminPing, ChainMiddleware(s.AdminPingHandler(), s.RequireRole(users.RoleAdmin)))

	// THIRD-PARTY LOGIN
	s.RegisterRouteFunc("GET "+RouteOAuth2Authorization, s.OAuth2AuthorizationHandler())
	s.RegisterRouteFunc("GET "+RouteOAuth2Callback, s.OAuth2CallbackHandler())

	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
}
