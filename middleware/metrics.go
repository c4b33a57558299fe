package middleware

import (
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
)

// SetupPrometheus records request metrics and serves them on GET /metrics.
func SetupPrometheus(r *gin.Engine) {
	p := ginprometheus.NewPrometheus("gin")
	p.Use(r)
}
