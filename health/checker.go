// Package health reports gateway component readiness over HTTP.
package health

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/pokt-network/poktroll/pkg/polylog"
)

const (
	// The image tag is set to the value of the IMAGE_TAG environment
	// variable, which is passed to the Docker image as a build argument at
	// build time.
	imageTagEnvVar = "IMAGE_TAG"
	// If the image tag is not set by the Docker build process, the default value is "development".
	defaultImageTag = "development"
)

// The status of the health check component.
type healthCheckStatus string

const (
	// statusReady indicates that all gateway components are ready
	statusReady healthCheckStatus = "ready"
	// statusNotReady indicates that one or more gateway components
	// are still initializing or have lost their backing service
	statusNotReady healthCheckStatus = "not_ready"
)

type (
	// Checker stores all gateway components whose health needs to be
	// checked to consider the gateway ready to serve traffic.
	Checker struct {
		Logger     polylog.Logger
		Components []Check
	}

	// Check is implemented by components that report their health status.
	Check interface {
		Name() string  // Name returns the name of the component being checked.
		IsAlive() bool // IsAlive returns true if the component is healthy, otherwise false.
	}
)

// healthCheckJSON is the JSON structure of the response body
// returned by the `/healthz` endpoint along with the status code.
type healthCheckJSON struct {
	// Status is either "ready" or "not_ready".
	Status healthCheckStatus `json:"status"`
	// ImageTag is the semver tag of the gateway Docker image, eg. `v0.0.1`
	ImageTag string `json:"imageTag"`
	// ReadyStates is a map of component names to their ready status
	ReadyStates map[string]bool `json:"readyStates,omitempty"`
}

// HealthzHandler returns the gateway's health status as a JSON response.
//
// It returns 200 OK if all components are ready or 503 Service Unavailable
// if any component is not.
func (c *Checker) HealthzHandler(w http.ResponseWriter, req *http.Request) {
	readyStates := c.getComponentReadyStates()
	status := getStatus(readyStates)

	responseBytes := c.getHealthCheckResponse(status, readyStates)
	if responseBytes == nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if status == statusReady {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if _, err := w.Write(responseBytes); err != nil {
		c.Logger.Error().Msgf("error writing health check response: %s", err.Error())
	}
}

// getHealthCheckResponse returns the health check JSON response body as bytes
func (c *Checker) getHealthCheckResponse(status healthCheckStatus, readyStates map[string]bool) []byte {
	imageTag := os.Getenv(imageTagEnvVar) // eg. `v0.0.1`
	if imageTag == "" {
		imageTag = defaultImageTag
	}

	healthCheckJSON := healthCheckJSON{
		Status:      status,
		ReadyStates: readyStates,
		ImageTag:    imageTag,
	}

	responseBytes, err := json.Marshal(healthCheckJSON)
	if err != nil {
		c.Logger.Error().Msgf("error marshaling health check response: %s", err.Error())
		return nil
	}

	return responseBytes
}

// getComponentReadyStates returns a map of component names to their ready status
func (c *Checker) getComponentReadyStates() map[string]bool {
	readyStates := make(map[string]bool)
	for _, component := range c.Components {
		readyStates[component.Name()] = component.IsAlive()
	}

	return readyStates
}

// getStatus returns not_ready if any component is not ready, otherwise ready
func getStatus(readyStates map[string]bool) healthCheckStatus {
	for _, ready := range readyStates {
		if !ready {
			return statusNotReady
		}
	}
	return statusReady
}
