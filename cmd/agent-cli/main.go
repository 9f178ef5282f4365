// Command agent-cli is a console harness for hosted agents: chat with an
// agent, drive prompt agents that call MCP tools, and compare content filter
// policies side by side.
package main

func main() {
	Execute()
}
