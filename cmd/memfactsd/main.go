// Command memfactsd answers free-memory queries over TCP.
package main

import "github.com/oleksiiilienko/hostfacts/internal/service"

func main() {
	service.Main(service.Memory)
}
