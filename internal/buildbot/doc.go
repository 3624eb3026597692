// Package buildbot reads build data from a buildbot web status service.
//
// Four endpoints are used, all relative to the configured base URL:
//
//	all/one_box_per_builder                              builder names
//	all/xmlrpc  getLastBuildsAllBuilders(k)              batched recent builds
//	all/builders/<name>/builds/<n>                       build summary page
//	all/builders/<name>/builds/<n>/steps/<step>/logs/stdio/text
//
// Negative build numbers count back from the newest build (-1 is the latest),
// which the web status resolves server side.
package buildbot
