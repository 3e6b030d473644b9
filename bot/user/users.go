// © 2024 the Pounce Authors under the WTFPL. See AUTHORS for the list of authors.

package user

// User type stores user history. This is a vehicle that will follow the user
// for the active session
type User struct {
	ID string

	// Current nickname known
	Name string

	// Alternative nicknames seen
	Alts   []string
	Parent string

	Admin bool

	IconImg string
}
