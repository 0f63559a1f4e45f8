package gateway

import (
	persistence "github.com/goliatone/go-persistence-bun"
)

// RegisterModels registers every gateway model with the persistence
// client registry. Call it once before creating the client.
func RegisterModels() {
	persistence.RegisterModel((*Account)(nil))
	persistence.RegisterModel((*Profile)(nil))
	persistence.RegisterModel((*PendingInvite)(nil))
	persistence.RegisterModel((*ProviderCredential)(nil))
	persistence.RegisterModel((*InstanceConfiguration)(nil))
}
