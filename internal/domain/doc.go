// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (recipe.go, vote.go, pairing.go, match.go, errors.go) hold the shared
// types and the collaborator contracts the app layer depends on. Adapters implement them.
package domain
