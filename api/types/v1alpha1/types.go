// Package v1alpha1 contains API types shared by the Versewall display host
// and controller.
package v1alpha1

// TypeMeta describes the API version of an object
type TypeMeta struct {
	// Kind identifies the object type
	Kind string `json:"kind,omitempty"`
	// APIVersion identifies the schema version
	APIVersion string `json:"apiVersion,omitempty"`
}
