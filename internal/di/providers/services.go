package providers

import (
	"github.com/samber/do/v2"

	"github.com/tallyapp/tally-server/internal/auth"
	"github.com/tallyapp/tally-server/internal/config"
	"github.com/tallyapp/tally-server/internal/logger"
	"github.com/tallyapp/tally-server/internal/media/images"
	"github.com/tallyapp/tally-server/internal/service"
)

// ProvideAuthService provides the authentication service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	limiter := do.MustInvoke[*LoginLimiter](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(storeHandle.Store, tokenService, limiter.KeyedRateLimiter, log.Logger), nil
}

// ProvideRoomService provides the room and membership service.
func ProvideRoomService(i do.Injector) (*service.RoomService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	gatewayHandle := do.MustInvoke[*GatewayHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewRoomService(storeHandle.Store, gatewayHandle.Cached, log.Logger), nil
}

// ProvideItemService provides the item event service.
func ProvideItemService(i do.Injector) (*service.ItemService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	gatewayHandle := do.MustInvoke[*GatewayHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewItemService(storeHandle.Store, gatewayHandle.Cached, log.Logger), nil
}

// ProvideInviteService provides the invitation service.
func ProvideInviteService(i do.Injector) (*service.InviteService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	gatewayHandle := do.MustInvoke[*GatewayHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewInviteService(
		storeHandle.Store,
		gatewayHandle.Cached,
		log.Logger,
		cfg.Server.PublicURL,
		cfg.Server.BasePath,
		cfg.Invite.DefaultExpiry,
	), nil
}

// ProvideProfileService provides the profile service.
func ProvideProfileService(i do.Injector) (*service.ProfileService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	avatars := do.MustInvoke[*images.Storage](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewProfileService(storeHandle.Store, avatars, log.Logger), nil
}
