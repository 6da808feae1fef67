// Package backend is the client for the remote scanning service.
package backend

import "fmt"

// ContractVersion is the request contract understood by the scan endpoint.
const ContractVersion = "1"

// ScanPolicyComprehensive asks the backend to run every rule set.
const ScanPolicyComprehensive = "comprehensive"

// ScanRequest is the JSON "request" part of a scan submission.
type ScanRequest struct {
	ContractVersion string `json:"contract_version"`
	ClientVersion   string `json:"client_version"`
	SecretsRedacted int    `json:"secrets_redacted"`
	FilesRedacted   int    `json:"files_redacted"`
	ScanPolicy      string `json:"scan_policy"`
	AgentName       string `json:"agent_name"`
}

// NewScanRequest fills the fixed fields for an anonymous scan of repoName.
// Nothing is redacted on this path, so both counters are zero.
func NewScanRequest(clientVersion, repoName string) ScanRequest {
	return ScanRequest{
		ContractVersion: ContractVersion,
		ClientVersion:   clientVersion,
		ScanPolicy:      ScanPolicyComprehensive,
		AgentName:       repoName,
	}
}

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("scan backend error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("scan backend returned %d", e.StatusCode)
}
