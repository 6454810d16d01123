package models

// Membership describes a user's relation to a campaign.
type Membership struct {
	CampaignID string
	UserID     string
	IsOwner    bool
	IsMember   bool
}

// CanAccess reports whether the user may read or embed the campaign's content.
func (m Membership) CanAccess() bool {
	return m.IsOwner || m.IsMember
}
