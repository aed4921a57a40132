package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseConfigurationFormat(t *testing.T) {
	// Test database path format validation
	validPaths := []string{
		"/data/infra-core.db",
		"./data/app.db",
		"infra-core.db",
		":memory:",
	}
	
	for _, path := range validPaths {
		assert.NotEmpty(t, path, "Database path should not be empty")
		if path != ":memory:" {
			assert.Contains(t, path, ".db", "Database path should contain .db extension")
		}
	}
}

func TestUserStructure(t *testing.T) {
	// Test user structure validation
	type User struct {
		ID           int
		Username     string
		Email        string
		PasswordHash string
		Role         string
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}
	
	// Create test user
	user := User{
		ID:           1,
		Username:     "admin",
		Email:        "admin@infra-core.local",
		PasswordHash: "$2a$10$example_hash",
		Role:         "admin",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	
	// Validate user fields
	assert.NotEmpty(t, user.Username, "Username should not be empty")
	assert.NotEmpty(t, user.Email, "Email should not be empty")
	assert.NotEmpty(t, user.PasswordHash, "Password hash should not be empty")
	assert.NotEmpty(t, user.Role, "Role should not be empty")
	assert.Contains(t, user.Email, "@", "Email should contain @ symbol")
	assert.True(t, len(user.PasswordHash) > 10, "Password hash should be sufficiently long")
}

func TestServiceStructure(t *testing.T) {
	// Test service structure validation
	type Service struct {
		ID         string
		Name       string
		YAMLConfig string
		Version    int
		Status     string
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}
	
	// Create test service
	service := Service{
		ID:         "service-123",
		Name:       "hello-service",
		YAMLConfig: "name: hello-service\nimage: nginx:alpine\nports:\n  - internal: 8080",
		Version:    1,
		Status:     "stopped",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	
	// Validate service fields
	assert.NotEmpty(t, service.Name, "Service name should not be empty")
	assert.NotEmpty(t, service.YAMLConfig, "YAML config should not be empty")
	assert.Greater(t, service.Version, 0, "Version should be positive")
	assert.NotEmpty(t, service.Status, "Status should not be empty")
	assert.Contains(t, service.YAMLConfig, "name:", "YAML config should contain name field")
	
	// Validate status values
	validStatuses := []string{"running", "stopped", "starting", "stopping", "error"}
	assert.Contains(t, validStatuses, service.Status, "Status should be valid")
}

func TestRouteStructure(t *testing.T) {
	// Test route structure validation
	type Route struct {
		ID                string
		Host              string
		PathPrefix        string
		UpstreamServiceID *string
		UpstreamURL       *string
		CreatedAt         time.Time
		UpdatedAt         time.Time
	}
	
	serviceID := "service-123"
	
	// Create test route
	route := Route{
		ID:                "route-123",
		Host:              "hello.local",
		PathPrefix:        "/",
		UpstreamServiceID: &serviceID,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	
	// Validate route fields
	assert.NotEmpty(t, route.Host, "Host should not be empty")
	assert.NotEmpty(t, route.PathPrefix, "Path prefix should not be empty")
	assert.True(t, route.UpstreamServiceID != nil || route.UpstreamURL != nil, 
		"Either upstream service ID or upstream URL should be set")
	assert.True(t, route.PathPrefix[0] == '/', "Path prefix should start with /")
}

func TestMetricStructure(t *testing.T) {
	// Test metric structure validation
	type Metric struct {
		ID          int
		Timestamp   time.Time
		ScopeType   string
		ScopeID     string
		MetricName  string
		MetricValue float64
	}
	
	// Create test metric
	metric := Metric{
		ID:          1,
		Timestamp:   time.Now(),
		ScopeType:   "service",
		ScopeID:     "service-123",
		MetricName:  "cpu_usage",
		MetricValue: 45.5,
	}
	
	// Validate metric fields
	assert.NotEmpty(t, metric.ScopeType, "Scope type should not be empty")
	assert.NotEmpty(t, metric.ScopeID, "Scope ID should not be empty")
	assert.NotEmpty(t, metric.MetricName, "Metric name should not be empty")
	assert.GreaterOrEqual(t, metric.MetricValue, 0.0, "Metric value should be non-negative")
	
	// Validate scope types
	validScopeTypes := []string{"service", "route", "system", "user"}
	assert.Contains(t, validScopeTypes, metric.ScopeType, "Scope type should be valid")
}

func TestStatisticsFormat(t *testing.T) {
	// Test database statistics format
	stats := map[string]interface{}{
		"total_users":    5,
		"total_services": 10,
		"total_routes":   15,
		"total_metrics":  1000,
		"database_size":  "2.5MB",
		"uptime":         "24h30m",
	}
	
	// Validate statistics structure
	assert.Contains(t, stats, "total_users", "Stats should contain total_users")
	assert.Contains(t, stats, "total_services", "Stats should contain total_services")
	assert.Contains(t, stats, "total_routes", "Stats should contain total_routes")
	assert.Contains(t, stats, "total_metrics", "Stats should contain total_metrics")
	
	// Validate data types
	assert.IsType(t, 0, stats["total_users"], "total_users should be integer")
	assert.IsType(t, 0, stats["total_services"], "total_services should be integer")
	assert.IsType(t, 0, stats["total_routes"], "total_routes should be integer")
	assert.IsType(t, 0, stats["total_metrics"], "total_metrics should be integer")
}

func TestPasswordHashValidation(t *testing.T) {
	// Test password hash format validation
	validHashes := []string{
		"$2a$10$abcdefghijklmnopqrstuvwxyz1234567890",
		"$2b$12$zyxwvutsrqponmlkjihgfedcba0987654321",
		"$2y$10$1234567890abcdefghijklmnopqrstuvwxyz",
	}
	
	for _, hash := range validHashes {
		assert.True(t, len(hash) >= 20, "Password hash should be sufficiently long")
		assert.True(t, hash[0] == '$', "Password hash should start with $")
		assert.Contains(t, hash, "$2", "Password hash should contain bcrypt identifier")
	}
}

func TestYAMLConfigValidation(t *testing.T) {
	// Test YAML configuration format
	validConfigs := []string{
		"name: hello-service\nimage: nginx:alpine\nports:\n  - internal: 8080",
		"name: api-service\nimage: node:16\nenv:\n  NODE_ENV: production",
		"name: db-service\nimage: postgres:13\nvolumes:\n  - /data:/var/lib/postgresql/data",
	}
	
	for _, config := range validConfigs {
		assert.NotEmpty(t, config, "YAML config should not be empty")
		assert.Contains(t, config, "name:", "YAML config should contain name field")
		assert.Contains(t, config, "image:", "YAML config should contain image field")
		assert.True(t, len(config) > 10, "YAML config should have meaningful content")
	}
}

func TestRoleValidation(t *testing.T) {
	// Test user role validation
	validRoles := []string{"admin", "user", "viewer", "operator"}
	invalidRoles := []string{"", "invalid", "root", "superuser"}
	
	for _, role := range validRoles {
		assert.NotEmpty(t, role, "Valid role should not be empty")
		assert.True(t, len(role) >= 4, "Valid role should have meaningful length")
	}
	
	for _, role := range invalidRoles {
		if role != "" {
			assert.NotContains(t, validRoles, role, "Invalid role should not be in valid list")
		}
	}
}

func TestTimestampValidation(t *testing.T) {
	// Test timestamp handling
	now := time.Now()
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)
	
	// Test time comparisons
	assert.True(t, past.Before(now), "Past timestamp should be before now")
	assert.True(t, future.After(now), "Future timestamp should be after now")
	assert.True(t, now.Sub(past) > 0, "Time difference should be positive")
	
	// Test time formatting
	rfc3339 := now.Format(time.RFC3339)
	assert.NotEmpty(t, rfc3339, "RFC3339 formatted time should not be empty")
	assert.Contains(t, rfc3339, "T", "RFC3339 time should contain T separator")
}

func TestDatabaseOperationFlow(t *testing.T) {
	// Test the logical flow of database operations
	steps := []string{
		"load_configuration",
		"initialize_database", 
		"health_check",
		"get_stats",
		"create_user",
		"create_service",
		"create_route",
		"insert_metric",
		"get_updated_stats",
	}
	
	// Validate operation sequence
	assert.Greater(t, len(steps), 5, "Should have meaningful number of operations")
	assert.Equal(t, "load_configuration", steps[0], "Should start with configuration loading")
	assert.Equal(t, "initialize_database", steps[1], "Should initialize database early")
	assert.Equal(t, "health_check", steps[2], "Should check health after initialization")
	assert.Contains(t, steps, "get_stats", "Should include statistics gathering")
	
	// Check for CRUD operations
	crudOperations := []string{"create_user", "create_service", "create_route", "insert_metric"}
	for _, operation := range crudOperations {
		assert.Contains(t, steps, operation, "Should include CRUD operation: %s", operation)
	}
}