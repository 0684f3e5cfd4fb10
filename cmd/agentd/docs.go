package main

// General API documentation for swaggo (`swag init -g cmd/agentd/docs.go`).
//
// @title           agentd admin API
// @version         1.0
// @description     Task scheduler and resource manager administration.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
