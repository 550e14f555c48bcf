// Command procfactsd answers scheduling priority and thread list queries over TCP.
package main

import "github.com/oleksiiilienko/hostfacts/internal/service"

func main() {
	service.Main(service.Process)
}
