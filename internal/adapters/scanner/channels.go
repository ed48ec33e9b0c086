package scanner

// channelToFrequency maps 802.11 channel numbers to their centre frequency
// in MHz. 2.4 GHz channels 1-14 and the usual 5 GHz allocation; anything
// else maps to 0.
func channelToFrequency(channel uint16) uint16 {
	switch channel {
	case 1:
		return 2412
	case 2:
		return 2417
	case 3:
		return 2422
	case 4:
		return 2427
	case 5:
		return 2432
	case 6:
		return 2437
	case 7:
		return 2442
	case 8:
		return 2447
	case 9:
		return 2452
	case 10:
		return 2457
	case 11:
		return 2462
	case 12:
		return 2467
	case 13:
		return 2472
	case 14:
		return 2484
	case 36:
		return 5180
	case 40:
		return 5200
	case 44:
		return 5220
	case 48:
		return 5240
	case 52:
		return 5260
	case 56:
		return 5280
	case 60:
		return 5300
	case 64:
		return 5320
	case 100:
		return 5500
	case 104:
		return 5520
	case 108:
		return 5540
	case 112:
		return 5560
	case 116:
		return 5580
	case 120:
		return 5600
	case 124:
		return 5620
	case 128:
		return 5640
	case 132:
		return 5660
	case 136:
		return 5680
	case 140:
		return 5700
	case 144:
		return 5720
	case 149:
		return 5745
	case 153:
		return 5765
	case 157:
		return 5785
	case 161:
		return 5805
	case 165:
		return 5825
	default:
		return 0
	}
}
