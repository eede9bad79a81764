// Package testutil contains helper builders and fakes used across tests to
// reduce boilerplate when constructing threads and messages and when a task
// runner is needed without a model. They are not intended for production
// usage.
package testutil
