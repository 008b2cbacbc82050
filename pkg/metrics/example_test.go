package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Example_basicUsage demonstrates basic metrics configuration.
func Example_basicUsage() {
	// Create a separate registry for this test
	testRegistry := prometheus.NewRegistry()
	registry := NewRegistry(testRegistry)

	fmt.Printf("Registry created with %d admission metrics\n", 7)
	fmt.Printf("Registry created with %d refill metrics\n", 3)
	fmt.Printf("Registry created with %d work queue metrics\n", 7)

	// Example of accessing metrics
	registry.AdmissionRequests.WithLabelValues("api").Add(10)
	registry.AdmissionGranted.WithLabelValues("api").Add(8)
	registry.AdmissionDenied.WithLabelValues("api", "deadline").Add(2)

	fmt.Println("Metrics updated successfully")

	// Output:
	// Registry created with 7 admission metrics
	// Registry created with 3 refill metrics
	// Registry created with 7 work queue metrics
	// Metrics updated successfully
}

// Example_customRegistry demonstrates using a custom Prometheus registry.
func Example_customRegistry() {
	// Create a custom registry
	customRegistry := prometheus.NewRegistry()

	config := Config{
		Enabled:  true,
		Registry: customRegistry,
	}

	// Create metrics registry with custom config
	registry := NewRegistry(config.Registry)

	// Test the registry
	registry.AdmissionRequests.WithLabelValues("custom").Add(12)
	registry.AdmissionGranted.WithLabelValues("custom").Add(10)
	registry.AdmissionClamped.WithLabelValues("custom").Add(4)

	fmt.Printf("Custom registry enabled: %v\n", config.Enabled)
	fmt.Println("Custom registry configured with gopermit metrics")

	// Output:
	// Custom registry enabled: true
	// Custom registry configured with gopermit metrics
}

// Example_metricsServer demonstrates setting up a metrics HTTP server.
func Example_metricsServer() {
	// In a real application, you would start a metrics server:
	//
	// http.Handle("/metrics", promhttp.Handler())
	// log.Fatal(http.ListenAndServe(":8080", nil))
	//
	// Available metrics would include:
	// - gopermit_admission_requests_total{limiter_name="http_api"}
	// - gopermit_admission_granted_total{limiter_name="http_api"}
	// - gopermit_admission_tokens_available{limiter_name="http_api"}
	// - gopermit_workqueue_active_workers{pool_name="request_handlers"}
	// - gopermit_workqueue_queued_tasks{pool_name="request_handlers"}
	// And many more...

	fmt.Println("Metrics available at /metrics endpoint")
	fmt.Println("See examples/metrics/main.go for a complete demonstration")

	// Output:
	// Metrics available at /metrics endpoint
	// See examples/metrics/main.go for a complete demonstration
}

// Example_configuration demonstrates different metrics configurations.
func Example_configuration() {
	// Default configuration
	defaultConfig := DefaultConfig()
	fmt.Printf("Default enabled: %v\n", defaultConfig.Enabled)
	fmt.Printf("Default namespace: %s\n", defaultConfig.Namespace)

	// Custom configuration
	customConfig := Config{
		Enabled:   false,
		Namespace: "myapp",
	}
	fmt.Printf("Custom enabled: %v\n", customConfig.Enabled)
	fmt.Printf("Custom namespace: %s\n", customConfig.Namespace)

	// Output:
	// Default enabled: true
	// Default namespace: gopermit
	// Custom enabled: false
	// Custom namespace: myapp
}
