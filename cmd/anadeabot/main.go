// Command anadeabot runs the T-shirt design assistant.
package main

func main() {
	Execute()
}
