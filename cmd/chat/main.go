// Command chat is a small chat server on top of socket.io. Clients connect
// to the root namespace with {"nickname": "..."} as auth payload.
package main

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"

	socketio "github.com/ioduplex/go-socket.io"
	"github.com/ioduplex/go-socket.io/engineio"
	"github.com/ioduplex/go-socket.io/logger"
)

func newServer(cfg *Config) *socketio.Server {
	allowAll := allowsAll(cfg.AllowedOrigins)
	return socketio.NewServer(&socketio.Options{
		Options: &engineio.Options{
			PingInterval: cfg.PingInterval,
			PingTimeout:  cfg.PingTimeout,
			MaxPayload:   cfg.MaxPayload,
			CheckOrigin: func(r *http.Request) bool {
				if allowAll {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, o := range cfg.AllowedOrigins {
					if o == origin {
						return true
					}
				}
				return false
			},
		},
		ConnectTimeout: cfg.ConnectTimeout,
		AckTimeout:     cfg.AckTimeout,
	})
}

func newRouter(cfg *Config, server *socketio.Server, log logr.Logger) *gin.Engine {
	registerHandlers(server, log)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg)))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"clients": server.Count(),
		})
	})
	router.Any("/socket.io/*any", gin.WrapH(server))

	return router
}

func corsConfig(cfg *Config) cors.Config {
	c := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if allowsAll(cfg.AllowedOrigins) {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.AllowedOrigins
		c.AllowCredentials = true
	}
	return c
}

func allowsAll(origins []string) bool {
	return len(origins) == 0 || (len(origins) == 1 && origins[0] == "*")
}

func main() {
	log := logger.GetLogger("chat")

	cfg, err := LoadConfig()
	if err != nil {
		log.Error(err, "load config")
		os.Exit(1)
	}

	server := newServer(cfg)
	defer server.Close()

	router := newRouter(cfg, server, log)
	log.Info("serving", "addr", cfg.Addr)
	if err := router.Run(cfg.Addr); err != nil {
		log.Error(err, "serve")
		os.Exit(1)
	}
}
