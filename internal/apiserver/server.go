// Copyright © 2023 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
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

package apiserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gorilla/mux"
	ffconfig "github.com/hyperledger/firefly-common/pkg/config"
	"github.com/hyperledger/firefly-common/pkg/ffapi"
	"github.com/hyperledger/firefly-common/pkg/fftls"
	"github.com/hyperledger/firefly-common/pkg/httpserver"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-common/pkg/log"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/config"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/metrics"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/msgs"
	"github.com/kaleido-io/kaleido-zkid-verifier/internal/services"
	"gopkg.in/yaml.v2"
)

type Server interface {
	Serve(ctx context.Context) error
}

type apiServer struct {
	apiTimeout     time.Duration
	apiMaxTimeout  time.Duration
	metricsEnabled bool
	metricsPath    string
	vm             services.VerificationManager
}

func NewAPIServer(ctx context.Context) (Server, error) {
	vm, err := services.NewManager(ctx)
	if err != nil {
		return nil, err
	}
	return newAPIServer(vm), nil
}

func newAPIServer(vm services.VerificationManager) *apiServer {
	return &apiServer{
		apiTimeout:     config.APIConfig.GetDuration(config.APIRequestTimeout),
		apiMaxTimeout:  config.APIConfig.GetDuration(config.APIRequestTimeoutMax),
		metricsEnabled: config.MetricsConfig.GetBool(config.MetricsEnabled),
		metricsPath:    config.MetricsConfig.GetString(config.MetricsPath),
		vm:             vm,
	}
}

func (ser *apiServer) Serve(ctx context.Context) (err error) {
	defer ser.vm.Close()

	httpErrChan := make(chan error)
	metricsErrChan := make(chan error)

	apiHttpServer, err := httpserver.NewHTTPServer(ctx, "zkid-verifier", ser.createMuxRouter(ctx), httpErrChan, config.APIConfig, config.CORSConfig, &httpserver.ServerOptions{
		MaximumRequestTimeout: ser.apiMaxTimeout,
	})
	if err != nil {
		log.L(ctx).Errorf("Failed to create API server: %s", err)
		return err
	}
	go apiHttpServer.ServeHTTP(ctx)

	if ser.metricsEnabled {
		metricsHttpServer, err := httpserver.NewHTTPServer(ctx, "metrics", ser.createMetricsMuxRouter(), metricsErrChan, config.MetricsConfig, config.CORSConfig)
		if err != nil {
			log.L(ctx).Errorf("Failed to create metrics server: %s", err)
			return err
		}
		go metricsHttpServer.ServeHTTP(ctx)
	}

	select {
	case err = <-httpErrChan:
	case err = <-metricsErrChan:
	}
	return err
}

func (ser *apiServer) createMuxRouter(ctx context.Context) *mux.Router {
	r := mux.NewRouter().UseEncodedPath()
	hf := ser.handlerFactory()

	publicURL := ser.getPublicURL(config.APIConfig, "")
	apiBaseURL := fmt.Sprintf("%s/api/v1", publicURL)
	log.L(ctx).Infof("API Base URL - %s", apiBaseURL)
	for _, route := range Routes {
		r.HandleFunc(fmt.Sprintf("/api/v1/%s", route.Path), ser.routeHandler(hf, route)).Methods(route.Method)
	}

	r.HandleFunc(`/api/swagger{ext:\.yaml|\.json|}`, hf.APIWrapper(ser.swaggerHandler(ser.swaggerGenerator(Routes, apiBaseURL))))
	r.HandleFunc(`/api`, hf.APIWrapper(hf.SwaggerUIHandler(publicURL+"/api/swagger.yaml")))
	log.L(ctx).Infof("Swagger UI at %s", publicURL+"/api")
	r.NotFoundHandler = hf.APIWrapper(ser.notFoundHandler)
	return r
}

func (ser *apiServer) createMetricsMuxRouter() *mux.Router {
	r := mux.NewRouter()
	r.Path(ser.metricsPath).Handler(metrics.Handler())
	return r
}

func (ser *apiServer) routeHandler(hf *ffapi.HandlerFactory, route *ffapi.Route) http.HandlerFunc {
	cr := route.Extensions.(*VerifierExtensions)
	route.JSONHandler = func(r *ffapi.APIRequest) (output interface{}, err error) {
		return cr.Handle(r, &VerifierRequest{
			vm: ser.vm,
		})
	}
	return hf.RouteHandler(route)
}

func (ser *apiServer) getPublicURL(conf ffconfig.Section, pathPrefix string) string {
	publicURL := conf.GetString(httpserver.HTTPConfPublicURL)

	if publicURL == "" {
		proto := "https"
		if !conf.SubSection("tls").GetBool(fftls.HTTPConfTLSEnabled) {
			proto = "http"
		}
		publicURL = fmt.Sprintf("%s://%s:%s", proto, conf.GetString(httpserver.HTTPConfAddress), conf.GetString(httpserver.HTTPConfPort))
	}
	if pathPrefix != "" {
		publicURL += "/" + pathPrefix
	}

	return publicURL
}

func (ser *apiServer) swaggerGenConf(apiBaseURL string) *ffapi.Options {
	return &ffapi.Options{
		BaseURL:                   apiBaseURL,
		Title:                     "Kaleido ZK Identity Verifier",
		Version:                   "1.0",
		PanicOnMissingDescription: false,
		DefaultRequestTimeout:     ser.apiTimeout,
	}
}

func (ser *apiServer) swaggerHandler(generator func(req *http.Request) (*openapi3.T, error)) func(res http.ResponseWriter, req *http.Request) (status int, err error) {
	return func(res http.ResponseWriter, req *http.Request) (status int, err error) {
		vars := mux.Vars(req)
		doc, err := generator(req)
		if err != nil {
			return 500, err
		}
		if vars["ext"] == ".json" {
			res.Header().Add("Content-Type", "application/json")
			b, _ := json.Marshal(&doc)
			_, _ = res.Write(b)
		} else {
			res.Header().Add("Content-Type", "application/x-yaml")
			b, _ := yaml.Marshal(&doc)
			_, _ = res.Write(b)
		}
		return 200, nil
	}
}

func (ser *apiServer) swaggerGenerator(routes []*ffapi.Route, apiBaseURL string) func(req *http.Request) (*openapi3.T, error) {
	swg := ffapi.NewSwaggerGen(ser.swaggerGenConf(apiBaseURL))
	return func(req *http.Request) (*openapi3.T, error) {
		return swg.Generate(req.Context(), routes), nil
	}
}

func (ser *apiServer) handlerFactory() *ffapi.HandlerFactory {
	return &ffapi.HandlerFactory{
		DefaultRequestTimeout: ser.apiTimeout,
		MaxTimeout:            ser.apiMaxTimeout,
	}
}

func (ser *apiServer) notFoundHandler(res http.ResponseWriter, req *http.Request) (status int, err error) {
	res.Header().Add("Content-Type", "application/json")
	return 404, i18n.NewError(req.Context(), msgs.MsgNotFound404)
}
