// Copyright 2024 OpenMedPlan Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/gzip"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/openmedplan/planservice/cmd/planservice/controllers"
)

var requestCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "planservice_http_requests_total",
	Help: "HTTP requests handled, by method and status code.",
}, []string{"method", "status"})

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		requestCounter.WithLabelValues(c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

func newRouter() *gin.Engine {
	router := gin.New()

	// Add a ginzap middleware, which:
	//   - Logs all requests, like a combined access and error log.
	//   - Logs to stdout.
	//   - RFC3339 with UTC time format.
	router.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	router.Use(ginzap.RecoveryWithZap(zap.L(), true))

	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(metricsMiddleware())

	// Healthcheck
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "online")
	})

	router.POST("/plan/", controllers.CreatePlanHandler)
	router.GET("/:type/:objectId", controllers.GetObjectHandler)
	router.PUT("/plan/:objectId", controllers.UpdatePlanHandler)
	router.PATCH("/plan/:objectId", controllers.PatchPlanHandler)
	router.DELETE("/plan/:objectId", controllers.DeletePlanHandler)

	return router
}

// SetupRestAPI initializes the REST API and starts listening
func SetupRestAPI(listenAddr string) {
	gin.SetMode(gin.ReleaseMode)
	router := newRouter()

	err := router.Run(listenAddr)
	if err != nil {
		panic(err)
	}
}
