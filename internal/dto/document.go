package dto

import "time"

// DocumentKind enumerates the accepted uploads.
type DocumentKind string

const (
	DocumentValidID             DocumentKind = "valid_id"
	DocumentDeathCertificate    DocumentKind = "death_certificate"
	DocumentBirthCertificate    DocumentKind = "birth_certificate"
	DocumentAffidavit           DocumentKind = "affidavit"
	DocumentBurialPermit        DocumentKind = "burial_permit"
	DocumentProofOfRelationship DocumentKind = "proof_of_relationship"
)

// Valid reports whether the kind is accepted.
func (k DocumentKind) Valid() bool {
	switch k {
	case DocumentValidID, DocumentDeathCertificate, DocumentBirthCertificate,
		DocumentAffidavit, DocumentBurialPermit, DocumentProofOfRelationship:
		return true
	}
	return false
}

// UploadedDocument is returned to the form so the URL can be attached to a request.
type UploadedDocument struct {
	Kind      DocumentKind `json:"kind"`
	URL       string       `json:"url"`
	MimeType  string       `json:"mime_type"`
	SizeBytes int64        `json:"size_bytes"`
	ExpiresAt time.Time    `json:"expires_at"`
}
