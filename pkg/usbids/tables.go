package usbids

// AnyProduct is stored as the product id of a mapping row that applies to
// every product of its vendor. It is compared literally like any other id.
const AnyProduct = 0xFFFF

// DefaultDiagInterface is used for devices without an interface mapping.
const DefaultDiagInterface = 0

var edlDevices = []EDLDevice{
	// Qualcomm
	{ID{0x05c6, 0x9008}, "Qualcomm EDL"},
	{ID{0x05c6, 0x9006}, "Qualcomm memory debug (alternate)"},
	{ID{0x05c6, 0x900e}, "Qualcomm memory debug"},
	{ID{0x05c6, 0x901d}, "Qualcomm Android DIAG+EDL"},
	{ID{0x05c6, 0x9025}, "Qualcomm EDL (alternate)"},
	// Sony
	{ID{0x0fce, 0x9dde}, "Sony EDL"},
	{ID{0x0fce, 0xade3}, "Sony EDL"},
	{ID{0x0fce, 0xade5}, "Sony EDL"},
	{ID{0x0fce, 0xaded}, "Sony EDL"},
	// Sierra Wireless
	{ID{0x1199, 0x9062}, "Sierra Wireless EDL"},
	{ID{0x1199, 0x9070}, "Sierra Wireless EM74xx/MC74xx EDL"},
	{ID{0x1199, 0x9090}, "Sierra Wireless EM9xxx/5G EDL"},
	// Netgear
	{ID{0x0846, 0x68e0}, "Netgear EDL"},
	// ZTE
	{ID{0x19d2, 0x0076}, "ZTE EDL"},
	// LG
	{ID{0x1004, 0x61a1}, "LG memory debug"},
}

var diagVendors = []DiagVendor{
	{0x2c7c, "Quectel"},
	{0x05c6, "Qualcomm"},
	{0x3c93, "Foxconn"},
	{0x3763, "Sierra Wireless (alternate)"},
	{0x1199, "Sierra Wireless"},
	{0x19d2, "ZTE"},
	{0x12d1, "Huawei"},
	{0x413c, "Dell"},
	{0x1bc7, "Telit"},
	{0x1e0e, "Simcom"},
	{0x0846, "Netgear"},
	{0x2cb7, "Fibocom"},
	{0x2dee, "MeiG Smart"},
}

// Names for vendors that only show up in EDL mode.
var otherVendors = []DiagVendor{
	{0x0fce, "Sony"},
	{0x1004, "LG"},
}

var interfaceMappings = []InterfaceMapping{
	// Quectel laptop modules
	{ID{0x2c7c, 0x0127}, 3, "Quectel EM05CEFC-LNV"},
	{ID{0x2c7c, 0x0128}, 3, "Quectel EM060KGL (Google)"},
	{ID{0x2c7c, 0x012c}, 3, "Quectel EM060K-GL"},
	{ID{0x2c7c, 0x012e}, 3, "Quectel EM120K-GL"},
	{ID{0x2c7c, 0x012f}, 3, "Quectel EM120K-GL"},
	{ID{0x2c7c, 0x0139}, 3, "Quectel EM061KGL"},
	{ID{0x2c7c, 0x013c}, 3, "Quectel RM255CGL (RedCap)"},
	{ID{0x2c7c, 0x0309}, 3, "Quectel EM05E-EDU"},
	{ID{0x2c7c, 0x030a}, 3, "Quectel EM05-G"},
	{ID{0x2c7c, 0x030d}, 3, "Quectel EM05G-FCCL"},
	{ID{0x2c7c, 0x0310}, 3, "Quectel EM05-CN"},
	{ID{0x2c7c, 0x0311}, 3, "Quectel EM05-G-SE10"},
	{ID{0x2c7c, 0x0315}, 3, "Quectel EM05-G STD"},
	{ID{0x2c7c, 0x0803}, 3, "Quectel RM520NGL (ThinkPad)"},
	{ID{0x2c7c, 0x0804}, 3, "Quectel (Zebra project)"},
	{ID{0x2c7c, 0x6008}, 3, "Quectel EM061KGL"},
	{ID{0x2c7c, 0x6009}, 3, "Quectel EM061KGL"},
	{ID{0x2c7c, 0x0133}, 2, "Quectel RG650VEU"},
	{ID{0x2c7c, 0x030b}, 2, "Quectel EG120KEABA"},
	{ID{0x2c7c, 0x0514}, 2, "Quectel EG060K-EA"},
	// Qualcomm reference designs
	{ID{0x05c6, 0x90db}, 2, "AG600K-EM / SDX55 reference"},
	{ID{0x05c6, 0x9091}, 0, "SDX55 DIAG composite"},
	{ID{0x05c6, 0x9092}, 0, "SDX55 alternate composite"},
	{ID{0x05c6, 0x90e8}, 0, "SDX65 reference QMI"},
	// Foxconn, every product
	{ID{0x3c93, AnyProduct}, 8, "Foxconn (generic)"},
	// Dell/Foxconn 5G
	{ID{0x413c, 0x81d7}, 5, "DW5820e / Telit LN940 / T77W968"},
	{ID{0x413c, 0x81e0}, 0, "DW5930e / Foxconn T99W175"},
	{ID{0x413c, 0x81e4}, 0, "DW5931e / Foxconn T99W373"},
	// Telit 4G
	{ID{0x1bc7, 0x1040}, 0, "Telit LM960A18 QMI"},
	{ID{0x1bc7, 0x1041}, 0, "Telit LM960A18 MBIM"},
	{ID{0x1bc7, 0x1201}, 0, "Telit LE910C4-NF"},
	// Telit 5G
	{ID{0x1bc7, 0x1050}, 0, "Telit FN980 (SDX55)"},
	{ID{0x1bc7, 0x1051}, 0, "Telit FN980m mmWave"},
	{ID{0x1bc7, 0x1052}, 0, "Telit FN980A"},
	{ID{0x1bc7, 0x1070}, 0, "Telit FN990A28 (SDX65)"},
	{ID{0x1bc7, 0x1071}, 0, "Telit FN990A28 QMI"},
	{ID{0x1bc7, 0x1080}, 0, "Telit FM990A28"},
	// Sierra Wireless 5G
	{ID{0x1199, 0x90d2}, 0, "Sierra EM9190 QMI"},
	{ID{0x1199, 0x90d3}, 0, "Sierra EM9190 MBIM"},
	{ID{0x1199, 0xc080}, 0, "Sierra EM9191 QMI"},
	{ID{0x1199, 0xc081}, 0, "Sierra EM9191 MBIM"},
	{ID{0x1199, 0xc082}, 0, "Sierra EM9291 (SDX65)"},
	// Simcom
	{ID{0x1e0e, 0x9001}, 0, "SIM8200EA-M2 (SDX55)"},
	{ID{0x1e0e, 0x9011}, 0, "SIM8200EA MBIM"},
	{ID{0x1e0e, 0x9024}, 0, "SIM8380G (SDX72)"},
	// Fibocom
	{ID{0x2cb7, 0x0109}, 0, "Fibocom FM150-AE (SDX55)"},
	{ID{0x2cb7, 0x010b}, 0, "Fibocom FM150-AE MBIM"},
	{ID{0x2cb7, 0x0113}, 0, "Fibocom FM160-GL QMI (SDX65)"},
	{ID{0x2cb7, 0x0115}, 0, "Fibocom FM160-GL MBIM"},
	// MeiG Smart
	{ID{0x2dee, 0x4d57}, 0, "MeiG SRM825 (SDX55)"},
	{ID{0x2dee, 0x4d63}, 0, "MeiG SRM930 (SDX65)"},
	// Netgear
	{ID{0x0846, 0x68e2}, 2, "Netgear"},
	// ZTE
	{ID{0x19d2, 0x1404}, 2, "ZTE"},
}
