package controller

import (
	"ftc/auth"
	"ftc/client"
	"ftc/repository"

	"github.com/gin-contrib/cache/persistence"
	"github.com/gin-gonic/gin"
	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"
)

type RouteInfo struct {
	Method        string
	Path          string
	HandlerFunc   gin.HandlerFunc
	Authenticated bool
	RequiredRoles []repository.Permission
}

func SetRoutes(r *gin.Engine, db *gorm.DB, cacheStore persistence.CacheStore, scorer client.ScoringProvider, decisionWriter *kafka.Writer) {
	routes := make([]RouteInfo, 0)
	routes = append(routes, setupAssignmentController(db)...)
	routes = append(routes, setupEvaluationController(db, scorer)...)
	routes = append(routes, setupCriteriaController(db, cacheStore)...)
	routes = append(routes, setupCompetencyController(db)...)
	routes = append(routes, setupConsensusController(db, cacheStore, decisionWriter)...)
	routes = append(routes, setupUserController(db)...)
	for _, route := range routes {
		handlerfuncs := make([]gin.HandlerFunc, 0)
		if route.Authenticated {
			handlerfuncs = append(handlerfuncs, AuthMiddleware(route.RequiredRoles))
		}
		handlerfuncs = append(handlerfuncs, route.HandlerFunc)
		r.Handle(route.Method, "/api"+route.Path, handlerfuncs...)
	}
}

func tokenFromRequest(c *gin.Context) string {
	authHeader := c.Request.Header.Get("Authorization")
	if len(authHeader) >= 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	if cookie, err := c.Cookie("auth"); err == nil {
		return cookie
	}
	// websocket clients pass the token as a query parameter
	return c.Request.URL.Query().Get("token")
}

func AuthMiddleware(roles []repository.Permission) gin.HandlerFunc {
	return func(r *gin.Context) {
		tokenString := tokenFromRequest(r)
		if tokenString == "" {
			r.JSON(401, gin.H{"error": "Unauthenticated"})
			r.Abort()
			return
		}
		token, err := auth.ParseToken(tokenString)
		if err != nil || !token.Valid {
			r.JSON(401, gin.H{"error": "Unauthenticated"})
			r.Abort()
			return
		}
		claims := &auth.Claims{}
		claims.FromJWTClaims(token.Claims)
		if err := claims.Valid(); err != nil {
			r.JSON(401, gin.H{"error": "Unauthenticated"})
			r.Abort()
			return
		}
		if len(roles) == 0 {
			r.Next()
			return
		}

		// roles are a closed enum checked by exact match
		for _, requiredRole := range roles {
			for _, userRole := range claims.Permissions {
				if string(requiredRole) == userRole {
					r.Next()
					return
				}
			}
		}
		r.JSON(403, gin.H{"error": "Unauthorized"})
		r.Abort()
	}
}
