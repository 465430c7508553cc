// Command zkgame is the client for the proof-gated exploration game: it
// keeps the player's state locally, proves moves and reward claims, and
// submits them to the verifier.
package main

func main() {
	Execute()
}
