package protocol

// Inbound (client → coordinator) event names.
const (
	EvJoinRoom              = "join_room"
	EvRouterCapabilities    = "get_router_rtc_capabilities"
	EvCreateTransport       = "create_transport"
	EvConnectTransport      = "connect_transport"
	EvProduce               = "produce"
	EvProduceData           = "produce_data"
	EvConsume               = "consume"
	EvConsumeData           = "consume_data"
	EvConsumerReady         = "consumer_ready"
	EvGetRoomProducers      = "get_room_producers"
	EvGetRoomAdmins         = "get_room_admins"
	EvGetRoomContext        = "get_room_context"
	EvRequestToJoin         = "request_to_join"
	EvJoinRequestAccepted   = "join_request_accepted"
	EvJoinRequestRejected   = "join_request_rejected"
	EvGrantRole             = "grant_role"
	EvToggleProducerState   = "toggle_producer_state"
	EvUserReaction          = "user_reaction"
	EvChatMessage           = "chat_message"
	EvRoomContextModified   = "room_context_modification"
	EvRequestAccessibility  = "request_accessibility_preference"
	EvAccessibilityAccepted = "accessibility_preference_acceptance"
	EvAccessibilityRejected = "accessibility_preference_rejection"
	EvScreenShareStopped    = "screen_sharing_stopped"
	EvProducerClosed        = "producer_closed"
	EvLeaveRoom             = "leave_room"
)

// Outbound broadcast event names.
const (
	EvScreenSharing     = "screen_sharing"
	EvProducerProducing = "producer_producing"
	EvProducingData     = "producer_producing_data"
)
