package netlink

import "fmt"

// All of these constants' names make the linter complain, but we inherited
// these names from include/uapi/linux/net_dropmon.h, so we will keep them.
const (
	NET_DM_CMD_UNSPEC       Command = 0
	NET_DM_CMD_ALERT        Command = 1
	NET_DM_CMD_CONFIG       Command = 2
	NET_DM_CMD_START        Command = 3
	NET_DM_CMD_STOP         Command = 4
	NET_DM_CMD_PACKET_ALERT Command = 5
	NET_DM_CMD_CONFIG_GET   Command = 6
	NET_DM_CMD_CONFIG_NEW   Command = 7
	NET_DM_CMD_STATS_GET    Command = 8
	NET_DM_CMD_STATS_NEW    Command = 9

	// NET_DM_CMD_MAX is the last command we know of.
	NET_DM_CMD_MAX = NET_DM_CMD_STATS_NEW
)

const (
	// FAMILY_NAME is the name the drop monitor registers with the generic
	// netlink controller.
	FAMILY_NAME = "NET_DM"

	// GROUP_NAME is the multicast group alerts are delivered on. Ancient
	// kernels used the fixed group NET_DM_GRP_ALERT (1) instead.
	GROUP_NAME = "events"

	NET_DM_GRP_ALERT uint32 = 1

	// FAMILY_VERSION is the genetlink header version we put on requests.
	FAMILY_VERSION uint8 = 1
)

// Sizes of the on-the-wire structures we need to reason about.
const (
	sizeofNlMsgHdr   = 16
	sizeofGenlMsgHdr = 4
	sizeofNlMsgErr   = 4 + sizeofNlMsgHdr
	sizeofNlAttr     = 4

	// struct net_dm_drop_point { __u8 pc[8]; __u32 count; }
	sizeofDropPoint = 12

	// struct net_dm_alert_msg { __u32 entries; struct net_dm_drop_point points[0]; }
	sizeofAlertHdr = 4
)

// Command is a generic netlink command understood by the drop monitor.
type Command uint8

var commandName = map[Command]string{
	NET_DM_CMD_UNSPEC:       "UNSPEC",
	NET_DM_CMD_ALERT:        "ALERT",
	NET_DM_CMD_CONFIG:       "CONFIG",
	NET_DM_CMD_START:        "START",
	NET_DM_CMD_STOP:         "STOP",
	NET_DM_CMD_PACKET_ALERT: "PACKET_ALERT",
	NET_DM_CMD_CONFIG_GET:   "CONFIG_GET",
	NET_DM_CMD_CONFIG_NEW:   "CONFIG_NEW",
	NET_DM_CMD_STATS_GET:    "STATS_GET",
	NET_DM_CMD_STATS_NEW:    "STATS_NEW",
}

func (c Command) String() string {
	s, ok := commandName[c]
	if !ok {
		return fmt.Sprintf("UNKNOWN_CMD_%d", c)
	}
	return s
}

// Known reports whether the command falls within the range of commands the
// kernel may send us. UNSPEC is never valid.
func (c Command) Known() bool {
	return c > NET_DM_CMD_UNSPEC && c <= NET_DM_CMD_MAX
}
