package router

import (
	"net/http"
	"time"

	potassium "github.com/bananalabs-oss/potassium/middleware"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/groupquest/partyboard/internal/gamedata"
	"github.com/groupquest/partyboard/internal/hub"
	"github.com/groupquest/partyboard/internal/lifecycle"
	"github.com/groupquest/partyboard/internal/middleware"
	"github.com/groupquest/partyboard/internal/rooms"
)

type Deps struct {
	Rooms        *rooms.Handler
	Lifecycle    *lifecycle.Handler
	Gamedata     *gamedata.Handler
	Hub          *hub.Hub
	Redis        *redis.Client
	JWTSecret    string
	ServiceToken string
	RateLimitMax int
	RateLimitWin time.Duration
}

func Setup(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())
	r.Use(middleware.RateLimit(d.Redis, d.RateLimitMax, d.RateLimitWin))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "partyboard"})
	})

	jwtAuth := potassium.JWTAuth(potassium.JWTConfig{
		Secret: []byte(d.JWTSecret),
	})

	// Player-facing endpoints (JWT auth via Potassium)
	api := r.Group("/rooms")
	api.Use(jwtAuth)
	{
		api.POST("", d.Rooms.CreateRoom)
		api.GET("", d.Rooms.ListRooms)
		api.GET("/mine", d.Rooms.ListMine)
		api.POST("/sweep", d.Lifecycle.SweepMine)
		api.GET("/:roomId", d.Rooms.GetRoom)
		api.POST("/:roomId/requests", d.Rooms.RequestJoin)
		api.POST("/:roomId/requests/:accountId/approve", d.Rooms.ApproveRequest)
		api.POST("/:roomId/requests/:accountId/reject", d.Rooms.RejectRequest)
		api.DELETE("/:roomId/members/:accountId", d.Rooms.RemoveMember)
		api.POST("/:roomId/leave", d.Rooms.Leave)
		api.DELETE("/:roomId", d.Rooms.DeleteRoom)
	}

	gd := r.Group("/gamedata")
	gd.Use(jwtAuth)
	{
		gd.GET("/worlds", d.Gamedata.Worlds)
		gd.GET("/bosses", d.Gamedata.Bosses)
		gd.GET("/creatures", d.Gamedata.Creatures)
	}

	ws := r.Group("/ws")
	ws.Use(jwtAuth)
	{
		ws.GET("", hub.ServeWS(d.Hub))
	}

	// Internal endpoints (service token auth via Potassium)
	internal := r.Group("/internal")
	internal.Use(potassium.ServiceAuth(d.ServiceToken))
	{
		internal.GET("/rooms/:roomId", d.Rooms.GetRoomInternal)
		internal.GET("/rooms/player/:userId", d.Rooms.GetPlayerRooms)
		internal.POST("/sweep", d.Lifecycle.SweepAll)
	}

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logrus.WithFields(logrus.Fields{
			"status_code": c.Writer.Status(),
			"latency_ms":  time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
		})
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("request failed")
		case c.Writer.Status() >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request handled")
		}
	}
}
