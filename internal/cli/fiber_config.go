package cli

import "github.com/gofiber/fiber/v3"

// createFiberConfig returns Fiber configuration. The selection cache and the
// websocket hub live in process memory, so the server always runs as a
// single process.
func createFiberConfig(appName string, views fiber.Views) fiber.Config {
	return fiber.Config{
		AppName: appName,
		Views:   views,
		// Use X-Forwarded-For to get real client IP behind reverse proxy
		ProxyHeader: fiber.HeaderXForwardedFor,
	}
}
