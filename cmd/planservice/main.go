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

/*
Important principles: stateless as much as possible

Incoming REST call --> http.go --> controllers (verb/header mapping)
	--> validator (schema gate on writes)
	--> services (key derivation, eTag protocol, per-key locking)
	--> store (flattened documents in Redis)
*/

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.elastic.co/ecszap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/openmedplan/planservice/cmd/planservice/auth"
	"github.com/openmedplan/planservice/cmd/planservice/controllers"
	"github.com/openmedplan/planservice/cmd/planservice/services"
	"github.com/openmedplan/planservice/cmd/planservice/store"
	"github.com/openmedplan/planservice/internal"
)

var buildtime string

func main() {
	var logLevel = os.Getenv("LOGGING_LEVEL")
	encoderConfig := ecszap.NewDefaultEncoderConfig()
	var core zapcore.Core
	switch logLevel {
	case "DEVELOPMENT":
		core = ecszap.NewCore(encoderConfig, os.Stdout, zap.DebugLevel)
	default:
		core = ecszap.NewCore(encoderConfig, os.Stdout, zap.InfoLevel)
	}
	logger := zap.New(core, zap.AddCaller())
	zap.ReplaceGlobals(logger)
	defer func() {
		_ = logger.Sync()
	}()

	zap.S().Infof("This is planservice build date: %s", buildtime)

	internal.Initfgtrace()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		zap.S().Fatal("JWT_SECRET is not set")
	}
	jwtIssuer := os.Getenv("JWT_ISSUER")
	if jwtIssuer == "" {
		jwtIssuer = "planservice"
	}

	redisURI := os.Getenv("REDIS_URI")
	if redisURI == "" {
		redisURI = "redis:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := 0
	if dbString := os.Getenv("REDIS_DB"); dbString != "" {
		var err error
		redisDB, err = strconv.Atoi(dbString)
		if err != nil {
			zap.S().Fatalf("Cannot parse REDIS_DB: not a number: %s", dbString)
		}
	}

	var planStore store.Store
	var redisStore *store.Redis

	memoryOnly := os.Getenv("MEMORY_ONLY")
	if memoryOnly == "True" || memoryOnly == "true" {
		zap.S().Warn("Running with the in-memory store. All plans are lost on restart.")
		planStore = store.NewMemory()
	} else {
		redisStore = store.NewRedis(redisURI, redisPassword, redisDB)
		planStore = redisStore
	}

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(100))
	if redisStore != nil {
		health.AddReadinessCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return redisStore.Ping(ctx)
		})
	}

	sideMux := http.NewServeMux()
	sideMux.HandleFunc("/live", health.LiveEndpoint)
	sideMux.HandleFunc("/ready", health.ReadyEndpoint)
	sideMux.Handle("/metrics", promhttp.Handler())
	go func() {
		/* #nosec G114 */
		err := http.ListenAndServe("0.0.0.0:8086", sideMux)
		if err != nil {
			zap.S().Errorf("Error starting healthcheck: %s", err)
		}
	}()

	zap.S().Debugf("Healthcheck initialized..")

	services.Setup(planStore)
	controllers.Setup(auth.NewJWTVerifier([]byte(jwtSecret), jwtIssuer))

	listenAddr := ":80"
	if port := os.Getenv("PORT"); port != "" {
		listenAddr = ":" + port
	}
	go SetupRestAPI(listenAddr)

	gs := internal.NewGracefulShutdown(func() error {
		if redisStore != nil {
			return redisStore.Close()
		}
		return nil
	})
	gs.Wait()
}
