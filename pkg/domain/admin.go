package domain

// AdminState records whether an admin has been claimed, the credential
// hashes that grant admin rights, and the optional verified list. A nil
// VerifiedList means verification has never been used; entries may be IP
// strings or credential hashes.
type AdminState struct {
	AdminCreated bool     `json:"admin_created"`
	AdminHashes  []string `json:"admin_hashes"`
	VerifiedList []string `json:"verified_list,omitempty"`
}

func (a AdminState) Clone() AdminState {
	out := AdminState{AdminCreated: a.AdminCreated}
	if a.AdminHashes != nil {
		out.AdminHashes = append([]string(nil), a.AdminHashes...)
	}
	if a.VerifiedList != nil {
		out.VerifiedList = append([]string(nil), a.VerifiedList...)
	}
	return out
}
