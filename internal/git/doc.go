// Package git provides the Git operations needed before a caro build:
// locating the checkout root and making sure the vendored Vulkan
// submodules are initialized.
//
// Git is driven through its CLI, either via the runner package (for the
// submodule update, so it honors --dry-run and streams progress) or via
// runGit for short queries whose output is parsed.
package git
